package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startRedisDockerContainer runs a disposable redis server. The test is
// skipped when no docker daemon can be reached.
func startRedisDockerContainer(t *testing.T) (string, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Skipf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.Run("redis", "7.0.10-alpine", nil)
	if err != nil {
		t.Fatalf("Failed to start redis: %+v", err)
	}

	// build address the container is listening on
	addr := net.JoinHostPort("localhost", resource.GetPort("6379/tcp"))

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		return client.Ping(context.Background()).Err()
	})

	if err != nil {
		t.Fatalf("Failed to ping Redis: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return addr, destroyFunc
}

// testQueueOrdering checks a queue delivers books first in first out
// and honors the order of the queue ids given to Pop.
func testQueueOrdering(t *testing.T, q Queuer) {
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, UpdateQueue, Book{ID: 10}))
	require.NoError(t, q.Push(ctx, CreateQueue, Book{ID: 1}))
	require.NoError(t, q.Push(ctx, CreateQueue, Book{ID: 2, Title: "Dune"}))

	qid, book, err := q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	require.NoError(t, err)
	assert.Equal(t, CreateQueue, qid)
	assert.Equal(t, 1, book.ID)

	qid, book, err = q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	require.NoError(t, err)
	assert.Equal(t, CreateQueue, qid)
	assert.Equal(t, Book{ID: 2, Title: "Dune"}, book)

	qid, book, err = q.Pop(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	require.NoError(t, err)
	assert.Equal(t, UpdateQueue, qid)
	assert.Equal(t, 10, book.ID)
}

func TestMemoryQueue_Ordering(t *testing.T) {
	testQueueOrdering(t, NewMemoryQueue(10))
}

func TestMemoryQueue_Full(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Push(context.Background(), CreateQueue, Book{ID: 1}))
	assert.ErrorIs(t, q.Push(context.Background(), DeleteQueue, Book{ID: 2}), ErrQueueFull)

	_, _, err := q.Pop(context.Background(), CreateQueue)
	require.NoError(t, err)
	assert.NoError(t, q.Push(context.Background(), DeleteQueue, Book{ID: 2}))
}

func TestMemoryQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewMemoryQueue(10)
	done := make(chan Book, 1)
	go func() {
		_, book, err := q.Pop(context.Background(), DeleteQueue)
		if err == nil {
			done <- book
		}
	}()

	select {
	case <-done:
		t.Fatal("pop returned before any push")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Push(context.Background(), DeleteQueue, Book{ID: 7}))
	select {
	case book := <-done:
		assert.Equal(t, 7, book.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not return after push")
	}
}

func TestMemoryQueue_PopCanceled(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := q.Pop(ctx, CreateQueue)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	canceled, stop := context.WithCancel(context.Background())
	stop()
	assert.ErrorIs(t, q.Push(canceled, CreateQueue, Book{ID: 1}), context.Canceled)
}

func TestRedisQueue(t *testing.T) {
	addr, destroyFunc := startRedisDockerContainer(t)
	defer destroyFunc()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	client, err := GetRedisClient(&Config{Redis: RedisConfig{Host: host, Port: port, DialTimeout: 5 * time.Second}})
	require.NoError(t, err)
	defer client.Close()

	q := NewRedisQueue(client)
	testQueueOrdering(t, q)

	t.Run("pop on empty queues stops with the context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, _, err := q.Pop(ctx, DeleteQueue)
		assert.Error(t, err)
	})
}
