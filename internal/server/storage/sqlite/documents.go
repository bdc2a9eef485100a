package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
)

// GetDocument retrieves a single document by id, including tombstones.
// Returns ErrDocumentNotFound if the document doesn't exist.
func (s *Storage) GetDocument(ctx context.Context, collection models.Collection, id string) (*models.Document, error) {
	query := `
		SELECT id, user_id, payload, updated_at, deleted
		FROM documents
		WHERE collection = ? AND id = ?
	`

	doc := &models.Document{}
	var deleted int

	err := s.db.QueryRowContext(ctx, query, collection.String(), id).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Payload,
		&doc.UpdatedAt,
		&deleted,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Deleted = intToBool(deleted)

	return doc, nil
}

// UpsertDocument inserts a document or replaces the existing one with the same id
func (s *Storage) UpsertDocument(ctx context.Context, collection models.Collection, doc *models.Document) error {
	query := `
		INSERT INTO documents (collection, id, user_id, payload, updated_at, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			user_id = excluded.user_id,
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		collection.String(),
		doc.ID,
		doc.UserID,
		doc.Payload,
		doc.UpdatedAt,
		boolToInt(doc.Deleted),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// ListDocumentsAfter returns the user's documents with cursor strictly greater
// than after, ordered by (updated_at ASC, id ASC), at most limit rows.
// Tombstones are included: deletions replicate like any other change.
func (s *Storage) ListDocumentsAfter(ctx context.Context, collection models.Collection, userID string, after models.Checkpoint, limit int) ([]*models.Document, error) {
	// Условие на пару (updated_at, id) повторяет порядок сортировки,
	// иначе записи с одинаковым updated_at на границе страницы
	// пропадали бы или дублировались.
	query := `
		SELECT id, user_id, payload, updated_at, deleted
		FROM documents
		WHERE collection = ? AND user_id = ?
		  AND (updated_at > ? OR (updated_at = ? AND id > ?))
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		collection.String(),
		userID,
		after.UpdatedAt,
		after.UpdatedAt,
		after.LastID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents after cursor: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanDocuments(rows)
}

// scanDocuments is a helper function to scan multiple documents from rows
func scanDocuments(rows *sql.Rows) ([]*models.Document, error) {
	var docs []*models.Document

	for rows.Next() {
		doc := &models.Document{}
		var deleted int

		err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Payload,
			&doc.UpdatedAt,
			&deleted,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.Deleted = intToBool(deleted)

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return docs, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
