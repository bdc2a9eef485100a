package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/models"
)

// SaveDocument stores a document. dirty == true marks it pending push,
// dirty == false clears the mark (server version applied).
func (s *Storage) SaveDocument(ctx context.Context, collection models.Collection, doc *models.Document, dirty bool) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	// Сериализуем запись в JSON
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(docsBucket(collection))
		if err := docs.Put([]byte(doc.ID), data); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		// Dirty-индекс ведем в той же транзакции: запись и ее пометка
		// не могут разъехаться
		dirtyIdx := tx.Bucket(dirtyBucket(collection))
		if dirty {
			return dirtyIdx.Put([]byte(doc.ID), []byte{1})
		}
		return dirtyIdx.Delete([]byte(doc.ID))
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetDocument retrieves a document by id, including tombstones
func (s *Storage) GetDocument(ctx context.Context, collection models.Collection, id string) (*models.Document, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var doc *models.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(docsBucket(collection)).Get([]byte(id))
		if data == nil {
			return storage.ErrDocumentNotFound
		}

		doc = &models.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// ListDocuments returns all non-deleted documents of the collection
func (s *Storage) ListDocuments(ctx context.Context, collection models.Collection) ([]*models.Document, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var docs []*models.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(docsBucket(collection)).ForEach(func(k, v []byte) error {
			var doc models.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal document: %w", err)
			}

			// Tombstones приложению не отдаем
			if !doc.Deleted {
				docs = append(docs, &doc)
			}

			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, nil
}

// ListDirty returns documents pending push, tombstones included
func (s *Storage) ListDirty(ctx context.Context, collection models.Collection) ([]*models.Document, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var docs []*models.Document

	err := s.db.View(func(tx *bbolt.Tx) error {
		docsB := tx.Bucket(docsBucket(collection))

		return tx.Bucket(dirtyBucket(collection)).ForEach(func(k, v []byte) error {
			data := docsB.Get(k)
			if data == nil {
				// Осиротевшая пометка; саму запись уже не восстановить
				return nil
			}

			var doc models.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal document: %w", err)
			}

			docs = append(docs, &doc)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list dirty documents: %w", err)
	}

	return docs, nil
}

// ClearDirty clears the pending-push mark from the listed documents
func (s *Storage) ClearDirty(ctx context.Context, collection models.Collection, ids []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		dirtyIdx := tx.Bucket(dirtyBucket(collection))
		for _, id := range ids {
			if err := dirtyIdx.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to clear dirty mark for %s: %w", id, err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
