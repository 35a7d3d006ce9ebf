package main

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// StorageWatcher reports changes made on the books document. The folder is
// watched instead of the file because each save replaces the file by rename.
type StorageWatcher struct {
	logger  *zap.Logger
	path    string
	changes *uint64
}

// NewStorageWatcher provides a watcher of the books document located at path.
// Every relevant event increments the changes counter.
func NewStorageWatcher(logger *zap.Logger, path string, changes *uint64) *StorageWatcher {
	return &StorageWatcher{logger: logger, path: filepath.Clean(path), changes: changes}
}

// Watch blocks until the context is done or the watcher fails.
func (sw *StorageWatcher) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err = w.Add(filepath.Dir(sw.path)); err != nil {
		return err
	}
	sw.logger.Info("watcher: started", zap.String("storage.file", sw.path))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("watcher: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != sw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				total := atomic.AddUint64(sw.changes, 1)
				sw.logger.Info("watcher: books file changed",
					zap.String("storage.file", event.Name),
					zap.String("storage.op", event.Op.String()),
					zap.Uint64("storage.changes", total),
				)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			sw.logger.Warn("watcher: error on books file watching", zap.Error(err))
		}
	}
}
