// Package session управляет жизненным циклом клиентской сессии:
// хранилищем реплики, потоками репликации и токеном доступа.
//
// Хендл локальной базы принадлежит сессии и живет от Open до Close,
// никаких процесс-глобальных синглтонов.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	clientapi "github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/client/outbox"
	"github.com/iudanet/boardsync/internal/client/reconcile"
	"github.com/iudanet/boardsync/internal/client/replication"
	"github.com/iudanet/boardsync/internal/client/storage/boltdb"
	"github.com/iudanet/boardsync/internal/models"
)

// Config содержит настройки сессии
type Config struct {
	// ServerURL — базовый адрес сервера синхронизации
	ServerURL string

	// DBPath — путь к файлу локальной реплики
	DBPath string

	// AccessToken — bearer-токен; выдача токенов вне зоны
	// ответственности клиента синхронизации
	AccessToken string

	// Replication — настройки потоков репликации
	Replication replication.Config

	// Debounce — настройки очереди отправки
	Debounce outbox.Config

	// OnUnauthorized вызывается при отзыве токена сервером.
	// Владелец сессии обязан закрыть ее и запросить новый токен.
	OnUnauthorized func()
}

// Session — открытая клиентская сессия синхронизации
type Session struct {
	store        *boltdb.Storage
	orchestrator *replication.Orchestrator
	reconciler   *reconcile.Reconciler
	logger       *slog.Logger

	tokenMu sync.RWMutex
	token   string

	closeOnce sync.Once
}

// Open открывает сессию: локальную базу и потоки репликации.
// Репликация стартует сразу; полнота реплики — через Ready.
func Open(ctx context.Context, logger *slog.Logger, cfg Config) (*Session, error) {
	store, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open replica storage: %w", err)
	}

	s := &Session{
		store:  store,
		logger: logger,
		token:  cfg.AccessToken,
	}

	client := clientapi.NewClient(cfg.ServerURL)

	streamCfg := cfg.Replication
	streamCfg.Token = s.currentToken

	queueCfg := cfg.Debounce
	queueCfg.Token = s.currentToken

	s.orchestrator = replication.NewOrchestrator(client, store, logger, replication.OrchestratorConfig{
		Stream:         streamCfg,
		Debounce:       queueCfg,
		OnUnauthorized: cfg.OnUnauthorized,
	})

	s.reconciler = reconcile.NewReconciler(store, writerFunc(s.localWrite), logger, nil)

	s.orchestrator.Start(ctx)
	return s, nil
}

// writerFunc адаптирует функцию под reconcile.DocumentWriter
type writerFunc func(ctx context.Context, doc *models.Document) error

func (f writerFunc) LocalWrite(ctx context.Context, doc *models.Document) error {
	return f(ctx, doc)
}

// localWrite направляет правку в поток страниц
func (s *Session) localWrite(ctx context.Context, doc *models.Document) error {
	return s.orchestrator.Stream(models.CollectionPages).LocalWrite(ctx, doc)
}

func (s *Session) currentToken() string {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token
}

// SetToken обновляет access token; следующие запросы уйдут с ним
func (s *Session) SetToken(token string) {
	s.tokenMu.Lock()
	s.token = token
	s.tokenMu.Unlock()
}

// Ready возвращает канал, закрываемый после первичного выката всех
// коллекций
func (s *Session) Ready() <-chan struct{} {
	return s.orchestrator.Ready()
}

// Write сохраняет локальную правку и запускает пересчет rollup-полей
// родительских записей, если правка затронула дочернюю коллекцию
func (s *Session) Write(ctx context.Context, collection models.Collection, doc *models.Document) error {
	if err := s.orchestrator.Stream(collection).LocalWrite(ctx, doc); err != nil {
		return err
	}

	if collection == models.CollectionWidgets {
		if _, err := s.reconciler.Reconcile(ctx); err != nil {
			// Rollup догонит следующая правка, сама запись сохранена
			s.logger.Warn("rollup reconcile failed", "error", err)
		}
	}
	return nil
}

// Delete помечает запись tombstone; удаление реплицируется как
// обычная правка
func (s *Session) Delete(ctx context.Context, collection models.Collection, id string, updatedAt int64) error {
	doc, err := s.store.GetDocument(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("load document for delete: %w", err)
	}

	next := doc.Clone()
	next.Deleted = true
	next.UpdatedAt = updatedAt
	return s.Write(ctx, collection, next)
}

// List возвращает неудаленные записи коллекции из локальной реплики
func (s *Session) List(ctx context.Context, collection models.Collection) ([]*models.Document, error) {
	return s.store.ListDocuments(ctx, collection)
}

// Get возвращает запись локальной реплики по id
func (s *Session) Get(ctx context.Context, collection models.Collection, id string) (*models.Document, error) {
	return s.store.GetDocument(ctx, collection, id)
}

// Close останавливает репликацию и освобождает хендл базы.
// Повторный вызов безопасен.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.orchestrator.Stop()
		err = s.store.Close()
	})
	return err
}

// NewDocumentID генерирует id новой записи
func NewDocumentID() string {
	return uuid.New().String()
}
