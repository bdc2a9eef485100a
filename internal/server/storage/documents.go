package storage

import (
	"context"

	"github.com/iudanet/boardsync/internal/models"
)

//go:generate moq -out documents_mock.go . DocumentStorage

// DocumentStorage определяет интерфейс серверного хранилища документов.
// Хранилище не знает про LWW: правила разрешения конфликтов живут уровнем
// выше, в sync.Gateway.
type DocumentStorage interface {
	// GetDocument возвращает запись по id, включая tombstones
	// (удаленные записи участвуют в проверке конфликтов).
	// Возвращает ErrDocumentNotFound, если записи нет.
	GetDocument(ctx context.Context, collection models.Collection, id string) (*models.Document, error)

	// UpsertDocument вставляет запись или заменяет существующую с тем же id.
	UpsertDocument(ctx context.Context, collection models.Collection, doc *models.Document) error

	// ListDocumentsAfter возвращает записи пользователя с курсором строго
	// больше after, в порядке (updated_at ASC, id ASC), не более limit штук.
	ListDocumentsAfter(ctx context.Context, collection models.Collection, userID string, after models.Checkpoint, limit int) ([]*models.Document, error)
}
