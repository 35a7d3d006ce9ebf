package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs.
const (
	CreateQueue = "creation"
	UpdateQueue = "updating"
	DeleteQueue = "deletion"
)

// RedisPopTimeout bounds each blocking pop on redis lists.
const RedisPopTimeout = time.Second

var (
	_ Queuer = (*redisQueue)(nil)
	_ Queuer = (*memoryQueue)(nil)
)

// ErrQueueFull is returned when the in-process queue cannot take more books.
var ErrQueueFull = errors.New("queue is full")

// Queuer describes a queue of books changes.
type Queuer interface {
	Push(ctx context.Context, qid string, book Book) error
	Pop(ctx context.Context, qids ...string) (string, Book, error)
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// redisQueue is a Queuer backed by redis lists.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues a book onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, bookBytes).Err()
}

// Pop returns the first dequeued book from the list of queue ids.
// It blocks until a book is available or the context is done. The
// blocking call is bounded so a done context is noticed on time.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, Book, error) {
	var book Book
	for {
		infos, err := q.client.BLPop(ctx, RedisPopTimeout, qids...).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", book, ctx.Err()
			}
			continue
		}
		if err != nil {
			return "", book, err
		}

		if err = json.Unmarshal([]byte(infos[1]), &book); err != nil {
			return "", book, err
		}
		return infos[0], book, nil
	}
}

// memoryQueue is an in-process Queuer. It is used when
// no redis server is configured.
type memoryQueue struct {
	mu     sync.Mutex
	items  map[string][]Book
	size   int
	max    int
	notify chan struct{}
}

// NewMemoryQueue provides an in-process queue which holds at most max books.
func NewMemoryQueue(max int) Queuer {
	return &memoryQueue{
		items:  make(map[string][]Book),
		max:    max,
		notify: make(chan struct{}, 1),
	}
}

// Push enqueues a book onto the queue identified by qid.
func (q *memoryQueue) Push(ctx context.Context, qid string, book Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	if q.size >= q.max {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items[qid] = append(q.items[qid], book)
	q.size++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop returns the first book found by checking the queue ids in order.
// It blocks until a book is available or the context is done.
func (q *memoryQueue) Pop(ctx context.Context, qids ...string) (string, Book, error) {
	for {
		if qid, book, ok := q.take(qids); ok {
			return qid, book, nil
		}
		select {
		case <-ctx.Done():
			return "", Book{}, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *memoryQueue) take(qids []string) (string, Book, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, qid := range qids {
		if books := q.items[qid]; len(books) > 0 {
			book := books[0]
			q.items[qid] = books[1:]
			q.size--
			return qid, book, true
		}
	}
	return "", Book{}, false
}
