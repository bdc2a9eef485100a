// Package outbox собирает локальные изменения в батчи перед отправкой.
//
// Каждый Enqueue взводит (или перевзводит) таймер окна накопления.
// Пока таймер не сработал, новые изменения попадают в тот же батч,
// поэтому серия быстрых правок уходит на сервер одним запросом.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	clientapi "github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

const (
	// DefaultDebounce — окно накопления изменений по умолчанию
	DefaultDebounce = 30 * time.Millisecond

	// flushTimeout ограничивает время одной отправки батча
	flushTimeout = 30 * time.Second
)

// ErrQueueClosed возвращается ожидающим Enqueue при закрытии очереди
var ErrQueueClosed = errors.New("outbox queue is closed")

// TokenFunc возвращает текущий access token для отправки батча
type TokenFunc func() string

// Config содержит настройки очереди
type Config struct {
	// Debounce — окно накопления; 0 означает DefaultDebounce
	Debounce time.Duration

	// Token выдает access token на момент отправки
	Token TokenFunc

	// OnUnauthorized вызывается один раз на отправку, если сервер
	// ответил 401. Владелец сессии должен ее разорвать.
	OnUnauthorized func()
}

// pendingEntry — одна порция изменений, ожидающая отправки
type pendingEntry struct {
	collection models.Collection
	docs       []api.Document
	done       chan flushResult
}

// flushResult — исход отправки для одной порции
type flushResult struct {
	conflicts []api.Document
	err       error
}

// Queue накапливает изменения и отправляет их одним batch push
type Queue struct {
	client clientapi.ClientAPI
	logger *slog.Logger
	cfg    Config

	mu      sync.Mutex
	pending []*pendingEntry
	timer   *time.Timer
	closed  bool
}

// NewQueue создает очередь отправки
func NewQueue(client clientapi.ClientAPI, logger *slog.Logger, cfg Config) *Queue {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Queue{
		client: client,
		logger: logger,
		cfg:    cfg,
	}
}

// Enqueue ставит изменения коллекции в очередь и блокируется до исхода
// отправки батча, в который они попали. Возвращает конфликтные записи
// этой порции в авторитетной серверной версии.
func (q *Queue) Enqueue(ctx context.Context, collection models.Collection, docs []api.Document) ([]api.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	entry := &pendingEntry{
		collection: collection,
		docs:       docs,
		done:       make(chan flushResult, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}

	q.pending = append(q.pending, entry)

	// Каждое новое изменение перевзводит таймер: окно отсчитывается
	// от последней правки, а не от первой
	if q.timer == nil {
		q.timer = time.AfterFunc(q.cfg.Debounce, q.flush)
	} else {
		q.timer.Reset(q.cfg.Debounce)
	}
	q.mu.Unlock()

	select {
	case res := <-entry.done:
		return res.conflicts, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush отправляет накопленный батч. Вызывается таймером.
func (q *Queue) flush() {
	q.mu.Lock()
	entries := q.pending
	q.pending = nil
	q.timer = nil
	q.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	// Сливаем порции в один батч, коллекции — в порядке зависимостей
	var req api.BatchPush
	for _, collection := range models.Collections() {
		var rows []api.Document
		for _, e := range entries {
			if e.collection == collection {
				rows = append(rows, e.docs...)
			}
		}
		if len(rows) > 0 {
			req.SetRows(collection.String(), rows)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	resp, err := q.client.PushBatch(ctx, q.cfg.Token(), req)
	if err != nil {
		q.logger.Error("batch push failed", "error", err, "entries", len(entries))

		if errors.Is(err, clientapi.ErrUnauthorized) && q.cfg.OnUnauthorized != nil {
			q.cfg.OnUnauthorized()
		}

		// Батч отклонен целиком: каждая порция получает ошибку
		for _, e := range entries {
			e.done <- flushResult{err: fmt.Errorf("batch push: %w", err)}
		}
		return
	}

	// Раскладываем конфликты обратно по порциям: каждая получает
	// только конфликты своих записей
	for _, e := range entries {
		e.done <- flushResult{conflicts: filterConflicts(resp.Rows(e.collection.String()), e.docs)}
	}
}

// filterConflicts возвращает конфликты, относящиеся к записям порции
func filterConflicts(conflicts, docs []api.Document) []api.Document {
	if len(conflicts) == 0 {
		return nil
	}

	ids := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		ids[d.ID] = struct{}{}
	}

	var own []api.Document
	for _, c := range conflicts {
		if _, ok := ids[c.ID]; ok {
			own = append(own, c)
		}
	}
	return own
}

// Close останавливает таймер и отклоняет все ожидающие порции.
// Последующие Enqueue возвращают ErrQueueClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true

	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}

	entries := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, e := range entries {
		e.done <- flushResult{err: ErrQueueClosed}
	}
}
