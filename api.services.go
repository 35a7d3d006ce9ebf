package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type BookServiceProvider interface {
	GetAll(ctx context.Context) []Book
	GetAvailable(ctx context.Context) []Book
	Add(ctx context.Context, payload BookPayload) (Book, error)
	Update(ctx context.Context, id int, payload BookPayload) (Book, error)
	Delete(ctx context.Context, id int) (Book, error)
}

// BookService runs each books change as a load-mutate-save cycle on the storage.
// Changes are serialized so two concurrent writers cannot lose each other update.
type BookService struct {
	logger  *zap.Logger
	mu      sync.Mutex
	storage BookStorage
	queue   Queuer
}

// NewBookService provides a books service. The queue is optional and
// receives every successfully persisted change.
func NewBookService(logger *zap.Logger, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		storage: storage,
		queue:   queue,
	}
}

func (bs *BookService) GetAll(ctx context.Context) []Book {
	return bs.storage.Load(ctx)
}

func (bs *BookService) GetAvailable(ctx context.Context) []Book {
	books := bs.storage.Load(ctx)
	available := []Book{}
	for _, book := range books {
		if book.Available {
			available = append(available, book)
		}
	}
	return available
}

// Add stores a new book built from a validated payload. Its id is
// one more than the highest id in the collection, or 1 if empty.
func (bs *BookService) Add(ctx context.Context, payload BookPayload) (Book, error) {
	if err := ValidateCreateBookRequestBody(&payload); err != nil {
		return Book{}, err
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	books := bs.storage.Load(ctx)
	book := Book{
		ID:        NextBookID(books),
		Title:     *payload.Title,
		Author:    *payload.Author,
		Available: *payload.Available,
	}
	books = append(books, book)
	if err := bs.storage.Save(ctx, books); err != nil {
		return book, fmt.Errorf("%w: %v", ErrBookNotSaved, err)
	}
	bs.publish(ctx, CreateQueue, book)
	return book, nil
}

// Update overwrites only the fields present in the payload.
func (bs *BookService) Update(ctx context.Context, id int, payload BookPayload) (Book, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	books := bs.storage.Load(ctx)
	idx := slices.IndexFunc(books, func(b Book) bool { return b.ID == id })
	if idx == -1 {
		return Book{}, ErrBookNotFound
	}

	if payload.Title != nil {
		books[idx].Title = *payload.Title
	}
	if payload.Author != nil {
		books[idx].Author = *payload.Author
	}
	if payload.Available != nil {
		books[idx].Available = *payload.Available
	}

	if err := bs.storage.Save(ctx, books); err != nil {
		return books[idx], fmt.Errorf("%w: %v", ErrBookNotSaved, err)
	}
	bs.publish(ctx, UpdateQueue, books[idx])
	return books[idx], nil
}

// Delete removes the book and returns it.
func (bs *BookService) Delete(ctx context.Context, id int) (Book, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	books := bs.storage.Load(ctx)
	idx := slices.IndexFunc(books, func(b Book) bool { return b.ID == id })
	if idx == -1 {
		return Book{}, ErrBookNotFound
	}

	book := books[idx]
	books = slices.Delete(books, idx, idx+1)
	if err := bs.storage.Save(ctx, books); err != nil {
		return book, fmt.Errorf("%w: %v", ErrBookNotSaved, err)
	}
	bs.publish(ctx, DeleteQueue, book)
	return book, nil
}

func (bs *BookService) publish(ctx context.Context, qid string, book Book) {
	if bs.queue == nil {
		return
	}
	// the change is already persisted so it must reach the queue even if the request is gone.
	if err := bs.queue.Push(context.WithoutCancel(ctx), qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.Int("book.id", book.ID), zap.Error(err))
	}
}

// NextBookID scans the collection and returns the highest id plus one.
func NextBookID(books []Book) int {
	next := 1
	for _, book := range books {
		if book.ID >= next {
			next = book.ID + 1
		}
	}
	return next
}
