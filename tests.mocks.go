package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// This file contains mocks definitions needed to perform unit tests.

// MockBookStorage is an in-memory BookStorage. LoadFunc and SaveFunc
// replace the default behavior when set.
type MockBookStorage struct {
	mu       sync.Mutex
	books    []Book
	saves    int
	LoadFunc func(ctx context.Context) []Book
	SaveFunc func(ctx context.Context, books []Book) error
}

// NewMockBookStorage returns a mocked storage holding a copy of books.
func NewMockBookStorage(books ...Book) *MockBookStorage {
	return &MockBookStorage{books: append([]Book{}, books...)}
}

// Load mocks the behavior of reading the whole collection.
func (m *MockBookStorage) Load(ctx context.Context) []Book {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Book{}, m.books...)
}

// Save mocks the behavior of persisting the whole collection.
func (m *MockBookStorage) Save(ctx context.Context, books []Book) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, books)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books = append([]Book{}, books...)
	m.saves++
	return nil
}

// Saves returns the number of successful saves.
func (m *MockBookStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// MockQueuer records pushed books when PushFunc is not set.
type MockQueuer struct {
	mu       sync.Mutex
	pushed   map[string][]Book
	PushFunc func(ctx context.Context, qid string, book Book) error
	PopFunc  func(ctx context.Context, qids ...string) (string, Book, error)
}

// Push mocks the behavior of enqueuing a book.
func (mq *MockQueuer) Push(ctx context.Context, qid string, book Book) error {
	if mq.PushFunc != nil {
		return mq.PushFunc(ctx, qid, book)
	}
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.pushed == nil {
		mq.pushed = make(map[string][]Book)
	}
	mq.pushed[qid] = append(mq.pushed[qid], book)
	return nil
}

// Pop mocks the behavior of dequeuing a book.
func (mq *MockQueuer) Pop(ctx context.Context, qids ...string) (string, Book, error) {
	return mq.PopFunc(ctx, qids...)
}

// Pushed returns books pushed onto the given queue id.
func (mq *MockQueuer) Pushed(qid string) []Book {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return append([]Book{}, mq.pushed[qid]...)
}

// MockBookService implements a fake BookServiceProvider.
type MockBookService struct {
	GetAllFunc       func(ctx context.Context) []Book
	GetAvailableFunc func(ctx context.Context) []Book
	AddFunc          func(ctx context.Context, payload BookPayload) (Book, error)
	UpdateFunc       func(ctx context.Context, id int, payload BookPayload) (Book, error)
	DeleteFunc       func(ctx context.Context, id int) (Book, error)
}

func (m *MockBookService) GetAll(ctx context.Context) []Book {
	return m.GetAllFunc(ctx)
}

func (m *MockBookService) GetAvailable(ctx context.Context) []Book {
	return m.GetAvailableFunc(ctx)
}

func (m *MockBookService) Add(ctx context.Context, payload BookPayload) (Book, error) {
	return m.AddFunc(ctx, payload)
}

func (m *MockBookService) Update(ctx context.Context, id int, payload BookPayload) (Book, error) {
	return m.UpdateFunc(ctx, id, payload)
}

func (m *MockBookService) Delete(ctx context.Context, id int) (Book, error) {
	return m.DeleteFunc(ctx, id)
}

// MockBookMirror implements a fake BookMirror.
type MockBookMirror struct {
	PutFunc    func(ctx context.Context, book Book) error
	DeleteFunc func(ctx context.Context, id int) error
	GetAllFunc func(ctx context.Context) ([]Book, error)
	ResetFunc  func(ctx context.Context, books []Book) error
}

func (m *MockBookMirror) Put(ctx context.Context, book Book) error {
	return m.PutFunc(ctx, book)
}

func (m *MockBookMirror) Delete(ctx context.Context, id int) error {
	return m.DeleteFunc(ctx, id)
}

func (m *MockBookMirror) GetAll(ctx context.Context) ([]Book, error) {
	return m.GetAllFunc(ctx)
}

func (m *MockBookMirror) Reset(ctx context.Context, books []Book) error {
	return m.ResetFunc(ctx, books)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

// newTestAPIHandler builds an api handler with mocked dependencies around bs.
func newTestAPIHandler(config *Config, bs BookServiceProvider) *APIHandler {
	if config == nil {
		config = &Config{}
	}
	return NewAPIHandler(
		zap.NewNop(),
		config,
		&Statistics{started: NewMockClocker().Now()},
		NewMockClocker(),
		NewMockUIDHandler("test", true),
		nil,
		bs,
	)
}
