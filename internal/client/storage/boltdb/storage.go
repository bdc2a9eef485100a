package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/models"
)

var (
	// BoltDB bucket names
	bucketCheckpoints = []byte("checkpoints")
)

// docsBucket возвращает имя bucket с записями коллекции
func docsBucket(collection models.Collection) []byte {
	return []byte("docs:" + collection.String())
}

// dirtyBucket возвращает имя bucket с id записей, ожидающих отправки
func dirtyBucket(collection models.Collection) []byte {
	return []byte("dirty:" + collection.String())
}

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	storage := &Storage{db: db}

	// Инициализируем buckets
	if err := storage.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCheckpoints); err != nil {
			return fmt.Errorf("failed to create checkpoints bucket: %w", err)
		}

		// По паре buckets на каждую коллекцию: записи и dirty-индекс
		for _, collection := range models.Collections() {
			if _, err := tx.CreateBucketIfNotExists(docsBucket(collection)); err != nil {
				return fmt.Errorf("failed to create docs bucket for %s: %w", collection, err)
			}
			if _, err := tx.CreateBucketIfNotExists(dirtyBucket(collection)); err != nil {
				return fmt.Errorf("failed to create dirty bucket for %s: %w", collection, err)
			}
		}

		return nil
	})
}
