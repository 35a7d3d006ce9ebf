package main

import (
	"context"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// boltDBConsumer applies books changes popped from the queue to the bolt mirror.
type boltDBConsumer struct {
	logger *zap.Logger
	queue  Queuer
	mirror BookMirror
}

func NewBoltDBConsumer(logger *zap.Logger, q Queuer, mirror BookMirror) Consumer {
	return &boltDBConsumer{logger, q, mirror}
}

// SyncBookMirror overwrites the mirror with the books currently persisted.
func SyncBookMirror(ctx context.Context, storage BookStorage, mirror BookMirror) error {
	return mirror.Reset(ctx, storage.Load(ctx))
}

func (bc *boltDBConsumer) Consume(ctx context.Context, qids ...string) error {
	var book Book
	var err error
	var qid string
	for {
		qid, book, err = bc.queue.Pop(ctx, qids...)
		if err != nil && ctx.Err() != nil {
			bc.logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}

		if err != nil {
			bc.logger.Error("consumer: error on queue pop call", zap.Error(err))
			continue
		}

		switch qid {
		case CreateQueue, UpdateQueue:
			if err = bc.mirror.Put(ctx, book); err != nil {
				bc.logger.Error("consumer: failed to mirror", zap.String("qid", qid), zap.Any("book", book), zap.Error(err))
			}
		case DeleteQueue:
			if err = bc.mirror.Delete(ctx, book.ID); err != nil {
				bc.logger.Error("consumer: failed to delete", zap.Int("book.id", book.ID), zap.Error(err))
			}
		default:
			bc.logger.Warn("consumer: received book on unknow queue id", zap.String("qid", qid), zap.Any("book", book))
		}
	}
}
