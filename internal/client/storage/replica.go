// Package storage определяет интерфейсы локальной реплики клиента.
package storage

import (
	"context"

	"github.com/iudanet/boardsync/internal/models"
)

//go:generate moq -out replica_mock.go . ReplicaStorage

// ReplicaStorage — локальная копия реплицируемых коллекций.
// Dirty-флаг отмечает записи с локальными изменениями, еще не
// подтвержденными сервером; снимается при успешном push или
// при перезаписи серверной версией.
type ReplicaStorage interface {
	// SaveDocument сохраняет запись. dirty == true помечает ее
	// ожидающей отправки; dirty == false снимает пометку
	// (применение серверной версии).
	SaveDocument(ctx context.Context, collection models.Collection, doc *models.Document, dirty bool) error

	// GetDocument возвращает запись по id, включая tombstones.
	// Возвращает ErrDocumentNotFound, если записи нет.
	GetDocument(ctx context.Context, collection models.Collection, id string) (*models.Document, error)

	// ListDocuments возвращает все неудаленные записи коллекции
	ListDocuments(ctx context.Context, collection models.Collection) ([]*models.Document, error)

	// ListDirty возвращает записи, ожидающие отправки на сервер
	ListDirty(ctx context.Context, collection models.Collection) ([]*models.Document, error)

	// ClearDirty снимает пометку dirty с перечисленных записей
	ClearDirty(ctx context.Context, collection models.Collection, ids []string) error
}

//go:generate moq -out checkpoints_mock.go . CheckpointStorage

// CheckpointStorage хранит курсор pull-репликации по каждой коллекции
type CheckpointStorage interface {
	// GetCheckpoint возвращает сохраненный курсор коллекции.
	// Для коллекции без курсора возвращает нулевой Checkpoint.
	GetCheckpoint(ctx context.Context, collection models.Collection) (models.Checkpoint, error)

	// SaveCheckpoint сохраняет курсор коллекции
	SaveCheckpoint(ctx context.Context, collection models.Collection, checkpoint models.Checkpoint) error
}
