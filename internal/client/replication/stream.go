// Package replication реализует двустороннюю репликацию коллекций:
// pull серверных изменений с курсором и push локальных правок через
// очередь отправки.
package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	clientapi "github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/outbox"
	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

const (
	// DefaultPullLimit — размер страницы pull по умолчанию
	DefaultPullLimit = 100

	// DefaultPollInterval — период фонового опроса сервера
	DefaultPollInterval = 5 * time.Second

	// DefaultRetryDelay — пауза между повторами после сетевой ошибки
	DefaultRetryDelay = 3 * time.Second
)

// Config содержит настройки потока репликации
type Config struct {
	PullLimit    int
	PollInterval time.Duration
	RetryDelay   time.Duration

	// Token выдает access token на момент запроса
	Token outbox.TokenFunc

	// OnUnauthorized вызывается, если сервер ответил 401 на pull.
	// Поток после этого останавливается.
	OnUnauthorized func()
}

func (c *Config) applyDefaults() {
	if c.PullLimit <= 0 {
		c.PullLimit = DefaultPullLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Stream реплицирует одну коллекцию между сервером и локальной репликой
type Stream struct {
	collection  models.Collection
	client      clientapi.ClientAPI
	replica     storage.ReplicaStorage
	checkpoints storage.CheckpointStorage
	queue       *outbox.Queue
	logger      *slog.Logger
	cfg         Config

	// initialDone закрывается после первого полного выката коллекции
	initialDone chan struct{}

	// localCh будит push-цикл после локальной правки
	localCh chan struct{}
}

// NewStream создает поток репликации коллекции
func NewStream(
	collection models.Collection,
	client clientapi.ClientAPI,
	replica storage.ReplicaStorage,
	checkpoints storage.CheckpointStorage,
	queue *outbox.Queue,
	logger *slog.Logger,
	cfg Config,
) *Stream {
	cfg.applyDefaults()
	return &Stream{
		collection:  collection,
		client:      client,
		replica:     replica,
		checkpoints: checkpoints,
		queue:       queue,
		logger:      logger.With("collection", collection.String()),
		cfg:         cfg,
		initialDone: make(chan struct{}),
		localCh:     make(chan struct{}, 1),
	}
}

// InitialDone возвращает канал, закрываемый после первого полного
// выката коллекции. До этого момента зависимые коллекции не стартуют.
func (s *Stream) InitialDone() <-chan struct{} {
	return s.initialDone
}

// Run выполняет цикл репликации до отмены контекста:
// первичный выкат, затем фоновый опрос и отправка локальных правок.
func (s *Stream) Run(ctx context.Context) error {
	// Первичный выкат: тянем страницы, пока сервер сообщает has_more
	if err := s.pullWithRetry(ctx); err != nil {
		return fmt.Errorf("initial pull for %s: %w", s.collection, err)
	}
	close(s.initialDone)

	// Локальные правки могли накопиться до старта (офлайн-период)
	if err := s.pushWithRetry(ctx); err != nil {
		return fmt.Errorf("initial push for %s: %w", s.collection, err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := s.pullWithRetry(ctx); err != nil {
				return fmt.Errorf("pull for %s: %w", s.collection, err)
			}

		case <-s.localCh:
			if err := s.pushWithRetry(ctx); err != nil {
				return fmt.Errorf("push for %s: %w", s.collection, err)
			}
		}
	}
}

// LocalWrite сохраняет локальную правку и будит push-цикл.
// Tombstone (Deleted == true) проходит тем же путем.
func (s *Stream) LocalWrite(ctx context.Context, doc *models.Document) error {
	if err := s.replica.SaveDocument(ctx, s.collection, doc, true); err != nil {
		return fmt.Errorf("save local write: %w", err)
	}
	s.notifyLocalWrite()
	return nil
}

func (s *Stream) notifyLocalWrite() {
	select {
	case s.localCh <- struct{}{}:
	default:
	}
}

// pushWithRetry отправляет накопленные правки, повторяя попытки
// с той же постоянной паузой, что и pull: задержка ретрая общая
// для обоих направлений. 401 и закрытая очередь не ретраятся.
func (s *Stream) pushWithRetry(ctx context.Context) error {
	backoff := retry.NewConstant(s.cfg.RetryDelay)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.pushDirty(ctx)
		if err == nil {
			return nil
		}

		if !isTransient(err) {
			return err
		}

		// Правки остались dirty, следующая попытка их подберет
		s.logger.Warn("push failed, retrying", "error", err)
		return retry.RetryableError(err)
	})
}

// pullWithRetry выкачивает все доступные изменения, повторяя попытки
// с постоянной паузой при сетевых ошибках. 401 не ретраится.
func (s *Stream) pullWithRetry(ctx context.Context) error {
	backoff := retry.NewConstant(s.cfg.RetryDelay)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.pullAll(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, clientapi.ErrUnauthorized) {
			if s.cfg.OnUnauthorized != nil {
				s.cfg.OnUnauthorized()
			}
			return err
		}

		s.logger.Warn("pull failed, retrying", "error", err)
		return retry.RetryableError(err)
	})
}

// pullAll тянет страницы изменений, пока сервер не отдаст неполную
func (s *Stream) pullAll(ctx context.Context) error {
	for {
		checkpoint, err := s.checkpoints.GetCheckpoint(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("get checkpoint: %w", err)
		}

		resp, err := s.client.Pull(ctx, s.cfg.Token(), s.collection, checkpoint, s.cfg.PullLimit)
		if err != nil {
			return err
		}

		if len(resp.Documents) == 0 {
			return nil
		}

		for i := range resp.Documents {
			if err := s.applyServerDocument(ctx, &resp.Documents[i]); err != nil {
				return err
			}
		}

		// Курсор двигаем только после применения всей страницы:
		// при сбое посередине страница придет повторно, применение
		// идемпотентно
		next := models.Checkpoint{
			LastID:    resp.Checkpoint.LastID,
			UpdatedAt: resp.Checkpoint.UpdatedAt,
		}
		if err := s.checkpoints.SaveCheckpoint(ctx, s.collection, next); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}

		if !resp.HasMore {
			return nil
		}
	}
}

// applyServerDocument применяет серверную запись по LWW: локальная
// версия выживает, только если она строго новее
func (s *Stream) applyServerDocument(ctx context.Context, doc *api.Document) error {
	incoming := fromWire(doc)

	existing, err := s.replica.GetDocument(ctx, s.collection, incoming.ID)
	if err != nil && !errors.Is(err, storage.ErrDocumentNotFound) {
		return fmt.Errorf("get local document: %w", err)
	}

	if existing != nil && existing.IsNewerThan(incoming) {
		// Локальная правка новее, она уйдет со следующим push
		return nil
	}

	if err := s.replica.SaveDocument(ctx, s.collection, incoming, false); err != nil {
		return fmt.Errorf("apply server document: %w", err)
	}
	return nil
}

// pushDirty отправляет накопленные локальные правки через очередь
// и применяет возвращенные конфликты как серверную истину
func (s *Stream) pushDirty(ctx context.Context) error {
	dirty, err := s.replica.ListDirty(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("list dirty: %w", err)
	}
	if len(dirty) == 0 {
		return nil
	}

	docs := make([]api.Document, 0, len(dirty))
	for _, d := range dirty {
		docs = append(docs, *toWire(d))
	}

	conflicts, err := s.queue.Enqueue(ctx, s.collection, docs)
	if err != nil {
		return fmt.Errorf("enqueue push: %w", err)
	}

	// Конфликтные записи перезаписываем серверной версией: наша
	// правка проиграла LWW и больше не считается локальной
	conflicted := make(map[string]struct{}, len(conflicts))
	for i := range conflicts {
		conflicted[conflicts[i].ID] = struct{}{}
		if err := s.replica.SaveDocument(ctx, s.collection, fromWire(&conflicts[i]), false); err != nil {
			return fmt.Errorf("apply conflict: %w", err)
		}
	}

	// Пометку снимаем только с записей, не изменившихся за время
	// отправки: новая правка поверх отправленной должна уйти сама
	clear := make([]string, 0, len(dirty))
	for _, d := range dirty {
		if _, ok := conflicted[d.ID]; ok {
			continue
		}
		current, err := s.replica.GetDocument(ctx, s.collection, d.ID)
		if err != nil {
			if errors.Is(err, storage.ErrDocumentNotFound) {
				continue
			}
			return fmt.Errorf("recheck pushed document: %w", err)
		}
		if current.UpdatedAt == d.UpdatedAt {
			clear = append(clear, d.ID)
		}
	}

	if err := s.replica.ClearDirty(ctx, s.collection, clear); err != nil {
		return fmt.Errorf("clear dirty: %w", err)
	}
	return nil
}

// isTransient отличает временные сбои отправки от фатальных
func isTransient(err error) bool {
	return err != nil &&
		!errors.Is(err, clientapi.ErrUnauthorized) &&
		!errors.Is(err, outbox.ErrQueueClosed) &&
		!errors.Is(err, context.Canceled)
}
