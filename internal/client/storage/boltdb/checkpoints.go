package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/models"
)

// GetCheckpoint возвращает сохраненный курсор коллекции.
// Для коллекции без курсора возвращает нулевой Checkpoint
// ("тянуть с самого начала").
func (s *Storage) GetCheckpoint(ctx context.Context, collection models.Collection) (models.Checkpoint, error) {
	if s.db == nil {
		return models.Checkpoint{}, storage.ErrStorageClosed
	}

	var checkpoint models.Checkpoint

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCheckpoints).Get([]byte(collection.String()))
		if data == nil {
			return nil
		}

		if err := json.Unmarshal(data, &checkpoint); err != nil {
			return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}

		return nil
	})

	if err != nil {
		return models.Checkpoint{}, err
	}

	return checkpoint, nil
}

// SaveCheckpoint сохраняет курсор коллекции
func (s *Storage) SaveCheckpoint(ctx context.Context, collection models.Collection, checkpoint models.Checkpoint) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put([]byte(collection.String()), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}
