package outbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/boardsync/internal/client/api"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wireDoc(id string, updatedAt int64) api.Document {
	return api.Document{
		ID:        id,
		Payload:   []byte(`{}`),
		UpdatedAt: updatedAt,
	}
}

func newTestQueue(client clientapi.ClientAPI, cfg Config) *Queue {
	if cfg.Token == nil {
		cfg.Token = func() string { return "test-token" }
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 10 * time.Millisecond
	}
	return NewQueue(client, testLogger(), cfg)
}

func TestQueue_EnqueueFlushes(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			assert.Equal(t, "test-token", accessToken)
			assert.Len(t, req.Widgets, 2)
			return &api.BatchPush{}, nil
		},
	}

	q := newTestQueue(mockClient, Config{})
	defer q.Close()

	conflicts, err := q.Enqueue(context.Background(), models.CollectionWidgets,
		[]api.Document{wireDoc("w-1", 100), wireDoc("w-2", 101)})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Len(t, mockClient.PushBatchCalls(), 1)
}

func TestQueue_CoalescesWithinWindow(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return &api.BatchPush{}, nil
		},
	}

	q := newTestQueue(mockClient, Config{Debounce: 50 * time.Millisecond})
	defer q.Close()

	// Пять быстрых правок внутри окна должны уйти одним запросом
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Enqueue(context.Background(), models.CollectionItems,
				[]api.Document{wireDoc(fmt.Sprintf("i-%d", i), int64(i))})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	calls := mockClient.PushBatchCalls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Req.Items, 5)
}

func TestQueue_SeparateWindowsSeparateBatches(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return &api.BatchPush{}, nil
		},
	}

	q := newTestQueue(mockClient, Config{Debounce: 10 * time.Millisecond})
	defer q.Close()

	_, err := q.Enqueue(context.Background(), models.CollectionPages, []api.Document{wireDoc("p-1", 1)})
	require.NoError(t, err)

	// Вторая правка приходит после закрытия первого окна
	_, err = q.Enqueue(context.Background(), models.CollectionPages, []api.Document{wireDoc("p-2", 2)})
	require.NoError(t, err)

	assert.Len(t, mockClient.PushBatchCalls(), 2)
}

func TestQueue_MergesCollectionsIntoOneBatch(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return &api.BatchPush{}, nil
		},
	}

	q := newTestQueue(mockClient, Config{Debounce: 50 * time.Millisecond})
	defer q.Close()

	var wg sync.WaitGroup
	for _, c := range []models.Collection{models.CollectionPages, models.CollectionWidgets} {
		wg.Add(1)
		go func(c models.Collection) {
			defer wg.Done()
			_, err := q.Enqueue(context.Background(), c, []api.Document{wireDoc("doc-"+c.String(), 1)})
			assert.NoError(t, err)
		}(c)
	}
	wg.Wait()

	calls := mockClient.PushBatchCalls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Req.Pages, 1)
	assert.Len(t, calls[0].Req.Widgets, 1)
}

func TestQueue_ConflictsRoutedToOwnEntry(t *testing.T) {
	serverWidget := wireDoc("w-1", 999)

	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return &api.BatchPush{Widgets: []api.Document{serverWidget}}, nil
		},
	}

	q := newTestQueue(mockClient, Config{Debounce: 50 * time.Millisecond})
	defer q.Close()

	type enqueueResult struct {
		conflicts []api.Document
		err       error
	}

	results := make(map[string]enqueueResult)
	var mu sync.Mutex
	var wg sync.WaitGroup

	enqueue := func(name string, c models.Collection, docs []api.Document) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conflicts, err := q.Enqueue(context.Background(), c, docs)
			mu.Lock()
			results[name] = enqueueResult{conflicts, err}
			mu.Unlock()
		}()
	}

	enqueue("conflicting", models.CollectionWidgets, []api.Document{wireDoc("w-1", 100)})
	enqueue("clean", models.CollectionWidgets, []api.Document{wireDoc("w-2", 100)})
	wg.Wait()

	require.NoError(t, results["conflicting"].err)
	require.Len(t, results["conflicting"].conflicts, 1)
	assert.Equal(t, int64(999), results["conflicting"].conflicts[0].UpdatedAt)

	require.NoError(t, results["clean"].err)
	assert.Empty(t, results["clean"].conflicts)
}

func TestQueue_ErrorRejectsWholeBatch(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return nil, errors.New("server unavailable")
		},
	}

	q := newTestQueue(mockClient, Config{Debounce: 50 * time.Millisecond})
	defer q.Close()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = q.Enqueue(context.Background(), models.CollectionLinks,
				[]api.Document{wireDoc(fmt.Sprintf("l-%d", i), 1)})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorContains(t, err, "server unavailable")
	}
}

func TestQueue_UnauthorizedTriggersCallback(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{
		PushBatchFunc: func(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
			return nil, fmt.Errorf("batch: %w", clientapi.ErrUnauthorized)
		},
	}

	unauthorized := make(chan struct{}, 1)
	q := newTestQueue(mockClient, Config{
		OnUnauthorized: func() { unauthorized <- struct{}{} },
	})
	defer q.Close()

	_, err := q.Enqueue(context.Background(), models.CollectionPages, []api.Document{wireDoc("p-1", 1)})
	require.ErrorIs(t, err, clientapi.ErrUnauthorized)

	select {
	case <-unauthorized:
	case <-time.After(time.Second):
		t.Fatal("OnUnauthorized was not called")
	}
}

func TestQueue_EmptyEnqueueIsNoop(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{}

	q := newTestQueue(mockClient, Config{})
	defer q.Close()

	conflicts, err := q.Enqueue(context.Background(), models.CollectionPages, nil)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, mockClient.PushBatchCalls())
}

func TestQueue_CloseRejectsPending(t *testing.T) {
	mockClient := &clientapi.ClientAPIMock{}

	q := newTestQueue(mockClient, Config{Debounce: time.Hour})

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Enqueue(context.Background(), models.CollectionPages, []api.Document{wireDoc("p-1", 1)})
		errCh <- err
	}()

	// Даем Enqueue встать в очередь до закрытия
	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("pending enqueue was not rejected")
	}

	_, err := q.Enqueue(context.Background(), models.CollectionPages, []api.Document{wireDoc("p-2", 1)})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
