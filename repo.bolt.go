package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

// BookMirror is a keyed copy of the books collection kept up to date from changes events.
type BookMirror interface {
	Put(ctx context.Context, book Book) error
	Delete(ctx context.Context, id int) error
	GetAll(ctx context.Context) ([]Book, error)
	Reset(ctx context.Context, books []Book) error
}

type boltBookMirror struct {
	logger *zap.Logger
	client *bolt.DB
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookMirror provides an instance of bolt-based books mirror.
func NewBoltBookMirror(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB) BookMirror {
	return &boltBookMirror{
		logger: logger,
		client: client,
		config: boltConfig,
	}
}

// itob returns an 8-byte big endian representation of a book id,
// so the cursor iterates books by ascending id.
func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// Put inserts or replaces a book record into boltdb store.
func (bm *boltBookMirror) Put(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bm.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bm.config.BucketName)).Put(itob(book.ID), bookBytes)
	})
}

// Delete removes a book record based on its ID from boltdb store.
func (bm *boltBookMirror) Delete(_ context.Context, id int) error {
	return bm.client.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bm.config.BucketName)).Delete(itob(id))
	})
}

// Reset replaces the whole bucket content with books in a single transaction.
func (bm *boltBookMirror) Reset(_ context.Context, books []Book) error {
	return bm.client.Update(func(tx *bolt.Tx) error {
		name := []byte(bm.config.BucketName)
		if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for _, book := range books {
			bookBytes, err := json.Marshal(book)
			if err != nil {
				return err
			}
			if err = bucket.Put(itob(book.ID), bookBytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAll retrieves a list of all books stored in the bolt database.
func (bm *boltBookMirror) GetAll(_ context.Context) ([]Book, error) {
	tx, err := bm.client.Begin(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Create a cursor on the books' bucket.
	c := tx.Bucket([]byte(bm.config.BucketName)).Cursor()

	books := []Book{}
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var book Book
		if err = json.Unmarshal(v, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}
