package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestBoltMirror returns a books mirror backed by a temporary bolt file.
func newTestBoltMirror(t *testing.T) BookMirror {
	t.Helper()
	testConfig := &Config{
		BoltDB: BoltDBConfig{
			FilePath:   filepath.Join(t.TempDir(), "tmp.bolt.db"),
			Timeout:    5 * time.Second,
			BucketName: "test.books",
		},
	}
	client, err := GetBoltDBClient(testConfig)
	require.NoError(t, err, "failed in creating a test bolt store")
	t.Cleanup(func() { _ = client.Close() })
	return NewBoltBookMirror(zap.NewNop(), &testConfig.BoltDB, client)
}

func TestGetBoltDBClient_CreatesBucket(t *testing.T) {
	config := &Config{BoltDB: BoltDBConfig{FilePath: filepath.Join(t.TempDir(), "b.db"), Timeout: time.Second, BucketName: "books"}}
	client, err := GetBoltDBClient(config)
	require.NoError(t, err)
	defer client.Close()
	err = client.View(func(tx *bolt.Tx) error {
		assert.NotNil(t, tx.Bucket([]byte("books")))
		return nil
	})
	assert.NoError(t, err)
}

func TestBoltMirror_EmptyBucket(t *testing.T) {
	bm := newTestBoltMirror(t)
	books, err := bm.GetAll(context.TODO())
	assert.NoError(t, err)
	assert.Equal(t, []Book{}, books)
}

func TestBoltMirror_PutAndDelete(t *testing.T) {
	bm := newTestBoltMirror(t)
	ctx := context.TODO()

	// ids above 255 check the ordering of the big endian keys.
	require.NoError(t, bm.Put(ctx, Book{ID: 300, Title: "C", Author: "Z"}))
	require.NoError(t, bm.Put(ctx, Book{ID: 2, Title: "B", Author: "Y", Available: true}))
	require.NoError(t, bm.Put(ctx, Book{ID: 1, Title: "A", Author: "X"}))

	books, err := bm.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []int{1, 2, 300}, []int{books[0].ID, books[1].ID, books[2].ID})

	// put replaces an existing record.
	require.NoError(t, bm.Put(ctx, Book{ID: 2, Title: "B2", Author: "Y", Available: false}))
	require.NoError(t, bm.Delete(ctx, 300))
	// deleting an absent key is not an error.
	require.NoError(t, bm.Delete(ctx, 999))

	books, err = bm.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Book{
		{ID: 1, Title: "A", Author: "X"},
		{ID: 2, Title: "B2", Author: "Y", Available: false},
	}, books)
}

func TestBoltMirror_Reset(t *testing.T) {
	bm := newTestBoltMirror(t)
	ctx := context.TODO()
	require.NoError(t, bm.Put(ctx, Book{ID: 9, Title: "Stale", Author: "Nobody"}))

	books := []Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert", Available: true},
		{ID: 4, Title: "Emma", Author: "Jane Austen"},
	}
	require.NoError(t, bm.Reset(ctx, books))
	got, err := bm.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, books, got)

	require.NoError(t, bm.Reset(ctx, nil))
	got, err = bm.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Book{}, got)
}
