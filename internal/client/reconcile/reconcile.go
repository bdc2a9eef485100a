// Package reconcile пересчитывает производные поля родительских
// записей из состояния дочерних.
//
// Правило выражено чистой функцией "текущие дети -> желаемое состояние
// родителя" и применяется после локальных правок. Повторный запуск без
// изменений детей не производит записей.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/models"
)

// widgetCountField — поле payload страницы с числом ее виджетов
const widgetCountField = "widget_count"

// pageIDField — поле payload виджета со ссылкой на страницу
const pageIDField = "page_id"

// DocumentWriter принимает локальную правку в поток репликации
type DocumentWriter interface {
	LocalWrite(ctx context.Context, doc *models.Document) error
}

// DesiredWidgetCounts считает живые виджеты по страницам.
// Чистая функция: tombstones и виджеты без page_id не учитываются.
func DesiredWidgetCounts(widgets []*models.Document) map[string]int {
	counts := make(map[string]int)
	for _, w := range widgets {
		if w.Deleted {
			continue
		}

		var payload struct {
			PageID string `json:"page_id"`
		}
		if err := json.Unmarshal(w.Payload, &payload); err != nil || payload.PageID == "" {
			continue
		}

		counts[payload.PageID]++
	}
	return counts
}

// Reconciler приводит rollup-поля страниц в соответствие с виджетами
type Reconciler struct {
	replica storage.ReplicaStorage
	writer  DocumentWriter
	logger  *slog.Logger
	now     func() int64
}

// NewReconciler создает reconciler. now может быть nil, тогда
// используется текущее время в unix millis.
func NewReconciler(replica storage.ReplicaStorage, writer DocumentWriter, logger *slog.Logger, now func() int64) *Reconciler {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Reconciler{
		replica: replica,
		writer:  writer,
		logger:  logger,
		now:     now,
	}
}

// Reconcile пересчитывает widget_count всех страниц и записывает
// только те, у которых значение изменилось. Возвращает число
// обновленных страниц.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	widgets, err := r.replica.ListDocuments(ctx, models.CollectionWidgets)
	if err != nil {
		return 0, fmt.Errorf("list widgets: %w", err)
	}

	pages, err := r.replica.ListDocuments(ctx, models.CollectionPages)
	if err != nil {
		return 0, fmt.Errorf("list pages: %w", err)
	}

	desired := DesiredWidgetCounts(widgets)

	updated := 0
	for _, page := range pages {
		changed, err := r.reconcilePage(ctx, page, desired[page.ID])
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}

	if updated > 0 {
		r.logger.Debug("page rollups reconciled", "updated", updated)
	}
	return updated, nil
}

// reconcilePage обновляет widget_count одной страницы, если он разошелся
func (r *Reconciler) reconcilePage(ctx context.Context, page *models.Document, want int) (bool, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(page.Payload, &payload); err != nil {
		return false, fmt.Errorf("parse page %s payload: %w", page.ID, err)
	}
	if payload == nil {
		payload = make(map[string]json.RawMessage)
	}

	if raw, ok := payload[widgetCountField]; ok {
		var current int
		if err := json.Unmarshal(raw, &current); err == nil && current == want {
			return false, nil
		}
	} else if want == 0 {
		// Поле отсутствует и виджетов нет: писать нечего
		return false, nil
	}

	value, err := json.Marshal(want)
	if err != nil {
		return false, err
	}
	payload[widgetCountField] = value

	newPayload, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal page %s payload: %w", page.ID, err)
	}

	next := page.Clone()
	next.Payload = newPayload
	next.UpdatedAt = r.now()

	if err := r.writer.LocalWrite(ctx, next); err != nil {
		return false, fmt.Errorf("write page %s rollup: %w", page.ID, err)
	}
	return true, nil
}
