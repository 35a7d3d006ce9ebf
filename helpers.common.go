package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrBookNotSaved = errors.New("failed to persist books")
	ErrInvalidBody  = errors.New("invalid book request body")
)

type (
	ContextKey        string
	missingFieldError string
)

const (
	RequestIDPrefix         string     = "r"
	RequestIDHeader         string     = "X-Request-ID"
	RequestIDContextKey     ContextKey = "request.id"
	RequestNumberContextKey ContextKey = "request.number"
)

// Client facing error messages.
const (
	MsgRequiredFields     = "Title, author, and available are required"
	MsgInvalidID          = "Invalid ID"
	MsgInvalidBody        = "Invalid request body"
	MsgBookNotFound       = "Book not found"
	MsgFailedSave         = "Failed to save book"
	MsgFailedUpdate       = "Failed to update book"
	MsgFailedDelete       = "Failed to delete book"
	MsgRouteNotFound      = "Route not found"
	MsgMethodNotAllowed   = "Method not allowed"
	MsgTooManyRequests    = "Too many requests"
	MsgFailedProcess      = "Failed to process the request"
	MsgServiceUnavailable = "Service currently unavailable"
)

func (m missingFieldError) Error() string {
	return string(m) + " is required"
}

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val := ctx.Value(contextKey); val != nil {
		return val.(string)
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val := ctx.Value(RequestNumberContextKey); val != nil {
		return val.(uint64)
	}
	return 0
}

// DecodeBookRequestBody reads the content of a book creation or update request.
// An empty body decodes into an empty payload. Anything after the
// JSON object makes the whole body invalid.
func DecodeBookRequestBody(r *http.Request, payload *BookPayload) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	err := decoder.Decode(payload)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if err = decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after the json object", ErrInvalidBody)
	}
	return nil
}

// ValidateCreateBookRequestBody checks the presence of all fields required to
// create a book. The availability flag only needs to be present.
func ValidateCreateBookRequestBody(payload *BookPayload) error {
	if payload.Title == nil || len(*payload.Title) == 0 {
		return missingFieldError("title")
	}

	if payload.Author == nil || len(*payload.Author) == 0 {
		return missingFieldError("author")
	}

	if payload.Available == nil {
		return missingFieldError("available")
	}

	return nil
}

// ParseBookID converts the path parameter into a book id.
func ParseBookID(raw string) (int, error) {
	return strconv.Atoi(raw)
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		ip = strings.TrimSpace(ip)
		netIP = net.ParseIP(ip)
		if netIP != nil {
			return ip
		}
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip
	}
	return ""
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result. This
// helps know if the App is running in a docker container or not.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
