package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStorageWatcher_CountsDocumentChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "books.json")
	var changes uint64
	watcher := NewStorageWatcher(zap.NewNop(), path, &changes)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx) }()
	// leave time to the watcher to register the folder.
	time.Sleep(100 * time.Millisecond)

	// other files of the folder are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	storage, err := NewFileBookStorage(zap.NewNop(), &StorageConfig{FilePath: path})
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), []Book{{ID: 1, Title: "Dune", Author: "Frank Herbert"}}))

	assert.Eventually(t, func() bool {
		return atomic.LoadUint64(&changes) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestStorageWatcher_MissingFolder(t *testing.T) {
	var changes uint64
	watcher := NewStorageWatcher(zap.NewNop(), filepath.Join(t.TempDir(), "absent", "books.json"), &changes)
	assert.Error(t, watcher.Watch(context.Background()))
}
