package replication

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	clientapi "github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/outbox"
	"github.com/iudanet/boardsync/internal/client/storage"
	"github.com/iudanet/boardsync/internal/models"
)

// ReplicaStore объединяет хранилище записей и курсоров: обе роли
// обслуживает один BoltDB файл
type ReplicaStore interface {
	storage.ReplicaStorage
	storage.CheckpointStorage
}

// Orchestrator управляет потоками репликации всех коллекций.
// Поток коллекции стартует только после первичного выката ее
// родительских коллекций, чтобы зависимые записи не появлялись
// раньше тех, на которые они ссылаются.
type Orchestrator struct {
	streams map[models.Collection]*Stream
	queue   *outbox.Queue
	logger  *slog.Logger

	ready  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	unauthorizedOnce sync.Once
}

// OrchestratorConfig содержит настройки оркестратора
type OrchestratorConfig struct {
	Stream   Config
	Debounce outbox.Config

	// OnUnauthorized вызывается не более одного раза при 401
	// от любого потока или очереди отправки
	OnUnauthorized func()
}

// NewOrchestrator создает оркестратор с потоком на каждую коллекцию
func NewOrchestrator(client clientapi.ClientAPI, store ReplicaStore, logger *slog.Logger, cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		streams: make(map[models.Collection]*Stream),
		logger:  logger,
		ready:   make(chan struct{}),
	}

	onUnauthorized := func() {
		o.unauthorizedOnce.Do(func() {
			logger.Warn("session invalidated by server")
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized()
			}
		})
	}

	queueCfg := cfg.Debounce
	queueCfg.OnUnauthorized = onUnauthorized
	if queueCfg.Token == nil {
		queueCfg.Token = cfg.Stream.Token
	}
	o.queue = outbox.NewQueue(client, logger, queueCfg)

	streamCfg := cfg.Stream
	streamCfg.OnUnauthorized = onUnauthorized
	for _, collection := range models.Collections() {
		o.streams[collection] = NewStream(collection, client, store, store, o.queue, logger, streamCfg)
	}

	return o
}

// Start запускает потоки репликации. Каждый поток ждет первичного
// выката родительских коллекций перед собственным стартом.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for collection, stream := range o.streams {
		o.wg.Add(1)
		go func(collection models.Collection, stream *Stream) {
			defer o.wg.Done()

			// Ждем родителей: виджет не должен прилететь раньше
			// своей страницы
			for _, parent := range collection.DependsOn() {
				select {
				case <-o.streams[parent].InitialDone():
				case <-ctx.Done():
					return
				}
			}

			if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("replication stream stopped",
					"collection", collection.String(), "error", err)
			}
		}(collection, stream)
	}

	// Закрываем ready после первичного выката всех коллекций
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for _, collection := range models.Collections() {
			select {
			case <-o.streams[collection].InitialDone():
			case <-ctx.Done():
				return
			}
		}
		close(o.ready)
	}()
}

// Ready возвращает канал, закрываемый после первичного выката всех
// коллекций: с этого момента локальная реплика полна
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

// Stream возвращает поток репликации коллекции.
// Через него приложение делает локальные правки.
func (o *Orchestrator) Stream(collection models.Collection) *Stream {
	return o.streams[collection]
}

// Stop останавливает все потоки и очередь отправки
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.queue.Close()
}
