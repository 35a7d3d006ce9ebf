package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBoltDBConsumer_MirrorsChanges(t *testing.T) {
	queue := NewMemoryQueue(10)
	mirror := newTestBoltMirror(t)
	consumer := NewBoltDBConsumer(zap.NewNop(), queue, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
	}()

	bg := context.Background()
	require.NoError(t, queue.Push(bg, CreateQueue, Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Available: true}))
	require.NoError(t, queue.Push(bg, CreateQueue, Book{ID: 2, Title: "Emma", Author: "Jane Austen"}))
	require.NoError(t, queue.Push(bg, UpdateQueue, Book{ID: 2, Title: "Emma", Author: "Jane Austen", Available: true}))
	require.NoError(t, queue.Push(bg, DeleteQueue, Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Available: true}))

	expected := []Book{{ID: 2, Title: "Emma", Author: "Jane Austen", Available: true}}
	assert.Eventually(t, func() bool {
		books, err := mirror.GetAll(bg)
		return err == nil && assert.ObjectsAreEqual(expected, books)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}

func TestBoltDBConsumer_MirrorFailureKeepsConsuming(t *testing.T) {
	queue := NewMemoryQueue(10)
	var mu sync.Mutex
	var puts []int
	mirror := &MockBookMirror{
		PutFunc: func(_ context.Context, book Book) error {
			mu.Lock()
			defer mu.Unlock()
			puts = append(puts, book.ID)
			if book.ID == 1 {
				return errors.New("bolt: database not open")
			}
			return nil
		},
	}
	consumer := NewBoltDBConsumer(zap.NewNop(), queue, mirror)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Consume(ctx, CreateQueue) }()

	require.NoError(t, queue.Push(context.Background(), CreateQueue, Book{ID: 1}))
	require.NoError(t, queue.Push(context.Background(), CreateQueue, Book{ID: 2}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(puts) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBoltDBConsumer_MirrorMatchesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	document := `[{"id": 1, "title": "Dune", "author": "Frank Herbert", "available": true}, {"id": 2, "title": "Emma", "author": "Jane Austen", "available": false}]`
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))
	storage, err := NewFileBookStorage(zap.NewNop(), &StorageConfig{FilePath: path})
	require.NoError(t, err)

	bg := context.Background()
	mirror := newTestBoltMirror(t)
	require.NoError(t, SyncBookMirror(bg, storage, mirror))

	queue := NewMemoryQueue(10)
	consumer := NewBoltDBConsumer(zap.NewNop(), queue, mirror)
	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	go func() { _ = consumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue) }()

	bs := NewBookService(zap.NewNop(), storage, queue)
	_, err = bs.Add(bg, BookPayload{Title: ptr("Ulysses"), Author: ptr("James Joyce"), Available: ptr(true)})
	require.NoError(t, err)

	expected := storage.Load(bg)
	require.Len(t, expected, 3)
	assert.Eventually(t, func() bool {
		books, err := mirror.GetAll(bg)
		return err == nil && assert.ObjectsAreEqual(expected, books)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSyncBookMirror(t *testing.T) {
	books := []Book{{ID: 3, Title: "Emma", Author: "Jane Austen"}}
	storage := NewMockBookStorage()
	storage.LoadFunc = func(_ context.Context) []Book { return books }

	var reset []Book
	mirror := &MockBookMirror{
		ResetFunc: func(_ context.Context, got []Book) error {
			reset = got
			return nil
		},
	}
	require.NoError(t, SyncBookMirror(context.Background(), storage, mirror))
	assert.Equal(t, books, reset)

	mirror.ResetFunc = func(_ context.Context, _ []Book) error { return errors.New("bolt: database not open") }
	assert.Error(t, SyncBookMirror(context.Background(), storage, mirror))
}

func TestBoltDBConsumer_PopFailureKeepsConsuming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var pops int
	queue := &MockQueuer{
		PopFunc: func(_ context.Context, _ ...string) (string, Book, error) {
			pops++
			switch pops {
			case 1:
				return "", Book{}, errors.New("connection reset by peer")
			case 2:
				return CreateQueue, Book{ID: 5, Title: "Emma", Author: "Jane Austen"}, nil
			case 3:
				return "unknown", Book{ID: 6}, nil
			default:
				cancel()
				return "", Book{}, context.Canceled
			}
		},
	}
	var puts []int
	mirror := &MockBookMirror{
		PutFunc: func(_ context.Context, book Book) error {
			puts = append(puts, book.ID)
			return nil
		},
	}

	// the consumer runs on this goroutine and returns once the context is canceled.
	err := NewBoltDBConsumer(zap.NewNop(), queue, mirror).Consume(ctx, CreateQueue)
	assert.NoError(t, err)
	assert.Equal(t, 4, pops)
	assert.Equal(t, []int{5}, puts)
}
