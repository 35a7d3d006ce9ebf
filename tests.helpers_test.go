package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseBookID(t *testing.T) {
	id, err := ParseBookID("42")
	assert.NoError(t, err)
	assert.Equal(t, 42, id)

	for _, raw := range []string{"", "abc", "12abc", "1.5"} {
		_, err = ParseBookID(raw)
		assert.Error(t, err, raw)
	}
}

func TestDecodeBookRequestBody(t *testing.T) {
	t.Run("presence of false is kept", func(t *testing.T) {
		var payload BookPayload
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"available": false}`))
		require.NoError(t, DecodeBookRequestBody(req, &payload))
		require.NotNil(t, payload.Available)
		assert.False(t, *payload.Available)
		assert.Nil(t, payload.Title)
		assert.Nil(t, payload.Author)
	})

	t.Run("null fields are absent", func(t *testing.T) {
		var payload BookPayload
		req := httptest.NewRequest(http.MethodPut, "/books/1", strings.NewReader(`{"title": null}`))
		require.NoError(t, DecodeBookRequestBody(req, &payload))
		assert.Nil(t, payload.Title)
	})

	t.Run("trailing whitespace is accepted", func(t *testing.T) {
		var payload BookPayload
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader("{\"title\": \"Dune\"}\n  \n"))
		require.NoError(t, DecodeBookRequestBody(req, &payload))
		assert.Equal(t, "Dune", *payload.Title)
	})

	t.Run("data after the object", func(t *testing.T) {
		for _, body := range []string{`{"title": "Dune"} trailing`, `{"title": "Dune"}{}`, `{} 1`} {
			var payload BookPayload
			req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body))
			assert.ErrorIs(t, DecodeBookRequestBody(req, &payload), ErrInvalidBody, body)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		var payload BookPayload
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`[1, 2]`))
		assert.ErrorIs(t, DecodeBookRequestBody(req, &payload), ErrInvalidBody)
	})
}

func TestValidateCreateBookRequestBody(t *testing.T) {
	assert.NoError(t, ValidateCreateBookRequestBody(&BookPayload{Title: ptr("T"), Author: ptr("A"), Available: ptr(false)}))
	err := ValidateCreateBookRequestBody(&BookPayload{Title: ptr("T"), Available: ptr(true)})
	assert.EqualError(t, err, "author is required")
	err = ValidateCreateBookRequestBody(&BookPayload{Title: ptr("T"), Author: ptr("A")})
	assert.EqualError(t, err, "available is required")
}

func TestGetRequestSourceIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", GetRequestSourceIP(req))

	req.Header.Set("X-FORWARDED-FOR", "bogus, 192.168.1.9")
	assert.Equal(t, "192.168.1.9", GetRequestSourceIP(req))

	req.Header.Set("X-REAL-IP", "172.16.0.3")
	assert.Equal(t, "172.16.0.3", GetRequestSourceIP(req))
}

func TestWriteResponse_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	assert.Error(t, WriteResponse(ctx, w, http.StatusOK, EmptyData))
	assert.Equal(t, 499, w.Code)

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	w = httptest.NewRecorder()
	assert.Error(t, WriteErrorResponse(ctx, w, NewAPIError(http.StatusNotFound, MsgBookNotFound)))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestIDsHandler(t *testing.T) {
	idh := NewIDsHandler()
	id := idh.Generate(RequestIDPrefix)
	assert.True(t, strings.HasPrefix(id, "r:"))
	assert.True(t, idh.IsValid(id, RequestIDPrefix))
	assert.False(t, idh.IsValid(strings.TrimPrefix(id, "r:"), RequestIDPrefix))
	assert.False(t, idh.IsValid("r:not-a-uuid", RequestIDPrefix))
	assert.NotEqual(t, id, idh.Generate(RequestIDPrefix))
}

func TestCreateLogFilePath(t *testing.T) {
	ts := time.Date(2023, 7, 2, 9, 5, 1, 0, time.UTC)
	assert.Equal(t, "logs/20230702.090501.prod.log", CreateLogFilePath("logs", true, ts))
	assert.Equal(t, "logs/20230702.090501.dev.log", CreateLogFilePath("logs", false, ts))
}

func TestRSyncWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	clock := NewMockClocker()
	rsw := NewRSyncWriter(&Config{LogFolder: dir, LogMaxSize: 1, IsProduction: true}, clock)
	defer rsw.Close()

	_, err := rsw.Write([]byte("first entry\n"))
	require.NoError(t, err)
	require.NoError(t, rsw.Sync())

	// an entry bigger than the max file size is refused.
	_, err = rsw.Write(bytes.Repeat([]byte("x"), 1048577))
	assert.Error(t, err)

	// filling the current file switches to a new one.
	clock.MockNow = clock.MockNow.Add(time.Second)
	_, err = rsw.Write(bytes.Repeat([]byte("y"), 1048570))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSetupLogging(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{IsProduction: true, LogLevel: zapcore.InfoLevel, GitCommit: "abc123", GitTag: "v1.0.0"}
	logger, flusher := SetupLogging(config, zapcore.AddSync(&buf), NewClock(true))
	logger.Debug("hidden")
	logger.Info("book created", zap.Int("book.id", 1))
	require.NoError(t, flusher())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"book created"`)
	assert.Contains(t, out, `"book.id":1`)
	assert.Contains(t, out, `"app.commit":"abc123"`)
	assert.Contains(t, out, `"app.tag":"v1.0.0"`)
	assert.Contains(t, out, `"lvl":"info"`)
}

func TestGetLoggerFromContext(t *testing.T) {
	api := newTestAPIHandler(nil, nil)
	assert.Equal(t, api.logger, api.GetLoggerFromContext(context.Background()))
	child := zap.NewExample()
	ctx := context.WithValue(context.Background(), LoggerContextKey, child)
	assert.Equal(t, child, api.GetLoggerFromContext(ctx))
}
