// Package sync реализует серверную сторону протокола репликации:
// постраничный pull по курсору (updated_at, id) и batched push
// с разрешением конфликтов по правилу Last-Write-Wins.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
)

const (
	// DefaultPullLimit размер страницы pull, если клиент не указал свой
	DefaultPullLimit = 100

	// MaxPullLimit верхняя граница размера страницы pull
	MaxPullLimit = 500

	// DefaultMaxPayloadBytes лимит размера payload одной записи
	DefaultMaxPayloadBytes = 256 << 10
)

// ErrPayloadTooLarge возвращается, если payload записи превышает лимит.
// Отклоняется весь батч целиком, до какой-либо записи в хранилище.
var ErrPayloadTooLarge = errors.New("document payload exceeds size limit")

// ErrDocumentOwnership возвращается, если id кандидата уже занят
// записью другой идентичности. Id — UUID, честная коллизия практически
// невозможна; такой push не должен перехватывать чужую запись.
var ErrDocumentOwnership = errors.New("document id belongs to another identity")

// Gateway обрабатывает pull/push запросы одной авторизованной идентичности.
type Gateway struct {
	storage         storage.DocumentStorage
	logger          *slog.Logger
	maxPayloadBytes int
}

// NewGateway создает новый sync gateway.
// maxPayloadBytes <= 0 означает лимит по умолчанию.
func NewGateway(logger *slog.Logger, st storage.DocumentStorage, maxPayloadBytes int) *Gateway {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &Gateway{
		storage:         st,
		logger:          logger,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// PullResult содержит страницу изменений и курсор для следующего pull
type PullResult struct {
	Documents  []*models.Document
	Checkpoint models.Checkpoint
	HasMore    bool
}

// Pull возвращает записи пользователя с курсором строго больше after,
// в порядке (updated_at ASC, id ASC), не более limit штук.
// HasMore == true означает ровно полную страницу: вызывающий должен
// сразу запросить следующую. Пустая страница оставляет курсор как есть.
func (g *Gateway) Pull(ctx context.Context, userID string, collection models.Collection, after models.Checkpoint, limit int) (*PullResult, error) {
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	if limit > MaxPullLimit {
		limit = MaxPullLimit
	}

	docs, err := g.storage.ListDocumentsAfter(ctx, collection, userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := &PullResult{
		Documents:  docs,
		Checkpoint: after,
		HasMore:    len(docs) == limit,
	}
	if len(docs) > 0 {
		result.Checkpoint = docs[len(docs)-1].Cursor()
	}

	g.logger.Debug("pull page served",
		"user_id", userID,
		"collection", collection,
		"count", len(docs),
		"has_more", result.HasMore)

	return result, nil
}

// Push принимает кандидатов от клиента и возвращает конфликтные записи
// в серверной авторитетной версии (пустой список — все приняты).
func (g *Gateway) Push(ctx context.Context, userID string, collection models.Collection, rows []*models.Document) ([]*models.Document, error) {
	if err := g.validateRows(collection, rows); err != nil {
		return nil, err
	}
	return g.pushRows(ctx, userID, collection, rows)
}

// PushBatch принимает кандидатов нескольких коллекций одним запросом.
// Валидация всего батча идет до первой записи в хранилище, чтобы
// отказ не оставлял частично примененный батч. Коллекции пишутся
// в порядке зависимостей (родители раньше детей).
func (g *Gateway) PushBatch(ctx context.Context, userID string, batch map[models.Collection][]*models.Document) (map[models.Collection][]*models.Document, error) {
	for collection, rows := range batch {
		if err := g.validateRows(collection, rows); err != nil {
			return nil, err
		}
	}

	conflicts := make(map[models.Collection][]*models.Document)
	for _, collection := range models.Collections() {
		rows := batch[collection]
		if len(rows) == 0 {
			continue
		}
		rejected, err := g.pushRows(ctx, userID, collection, rows)
		if err != nil {
			return nil, err
		}
		conflicts[collection] = rejected
	}

	return conflicts, nil
}

// validateRows проверяет батч до записи в хранилище
func (g *Gateway) validateRows(collection models.Collection, rows []*models.Document) error {
	for _, row := range rows {
		if row.ID == "" {
			return fmt.Errorf("collection %s: document without id", collection)
		}
		if len(row.Payload) > g.maxPayloadBytes {
			return fmt.Errorf("collection %s, document %s: %w (%d > %d bytes)",
				collection, row.ID, ErrPayloadTooLarge, len(row.Payload), g.maxPayloadBytes)
		}
	}
	return nil
}

// pushRows последовательно применяет записи батча: конфликт против
// записи, записанной ранее в этом же батче, должен быть виден.
func (g *Gateway) pushRows(ctx context.Context, userID string, collection models.Collection, rows []*models.Document) ([]*models.Document, error) {
	conflicts := []*models.Document{}

	for _, row := range rows {
		// user_id из payload клиента не принимается: владельца
		// определяет токен, иначе одна идентичность писала бы в чужие данные
		row.UserID = userID

		existing, err := g.storage.GetDocument(ctx, collection, row.ID)
		if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
			return nil, fmt.Errorf("failed to check existing document: %w", err)
		}

		// LWW сравнивает только версии одной и той же записи; запись
		// другой идентичности кандидат перезаписать не может
		if existing != nil && existing.UserID != userID {
			g.logger.Warn("push rejected, document owned by another identity",
				"collection", collection,
				"document_id", row.ID,
				"user_id", userID)
			return nil, fmt.Errorf("collection %s, document %s: %w", collection, row.ID, ErrDocumentOwnership)
		}

		// Проверка и запись не обернуты в транзакцию: два конкурентных
		// push одного id могут оба пройти проверку, и поздний затрет
		// раннего. Известная слабость протокола; сходимость восстановит
		// следующий pull проигравшего устройства.
		if existing != nil && existing.IsNewerThan(row) {
			conflicts = append(conflicts, existing)
			g.logger.Debug("push conflict, existing is newer",
				"collection", collection,
				"document_id", row.ID,
				"incoming_ts", row.UpdatedAt,
				"existing_ts", existing.UpdatedAt)
			continue
		}

		if err := g.storage.UpsertDocument(ctx, collection, row); err != nil {
			return nil, fmt.Errorf("failed to upsert document: %w", err)
		}
	}

	g.logger.Info("push applied",
		"user_id", userID,
		"collection", collection,
		"received", len(rows),
		"conflicts", len(conflicts))

	return conflicts, nil
}
