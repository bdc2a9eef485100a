package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/client/outbox"
	"github.com/iudanet/boardsync/internal/client/replication"
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer отвечает пустыми pull и принимает batch push
type fakeServer struct {
	mu      sync.Mutex
	batches []api.BatchPush
	tokens  []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/sync/{collection}/pull", func(w http.ResponseWriter, r *http.Request) {
		f.recordToken(r)
		_ = json.NewEncoder(w).Encode(api.PullResponse{})
	})

	mux.HandleFunc("POST /api/v1/sync/batch/push", func(w http.ResponseWriter, r *http.Request) {
		f.recordToken(r)

		var req api.BatchPush
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.batches = append(f.batches, req)
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(api.BatchPush{})
	})

	return mux
}

func (f *fakeServer) recordToken(r *http.Request) {
	f.mu.Lock()
	f.tokens = append(f.tokens, r.Header.Get("Authorization"))
	f.mu.Unlock()
}

func (f *fakeServer) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func openTestSession(t *testing.T, serverURL string) *Session {
	t.Helper()

	s, err := Open(context.Background(), testLogger(), Config{
		ServerURL:   serverURL,
		DBPath:      filepath.Join(t.TempDir(), "session.db"),
		AccessToken: "session-token",
		Replication: replication.Config{
			PullLimit:    10,
			PollInterval: time.Hour,
			RetryDelay:   5 * time.Millisecond,
		},
		Debounce: outbox.Config{Debounce: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not become ready")
	}
}

func TestSession_OpenReadyClose(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := openTestSession(t, srv.URL)
	waitReady(t, s)

	require.NoError(t, s.Close())
	// Повторное закрытие безопасно
	require.NoError(t, s.Close())
}

func TestSession_WriteReachesServer(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := openTestSession(t, srv.URL)
	waitReady(t, s)

	ctx := context.Background()
	doc := &models.Document{
		ID:        NewDocumentID(),
		Payload:   json.RawMessage(`{"title":"my board"}`),
		UpdatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, s.Write(ctx, models.CollectionPages, doc))

	// Запись видна локально сразу
	got, err := s.Get(ctx, models.CollectionPages, doc.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"my board"}`, string(got.Payload))

	// И уходит на сервер после окна накопления
	require.Eventually(t, func() bool {
		return fake.batchCount() > 0
	}, 5*time.Second, 10*time.Millisecond)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.NotEmpty(t, fake.batches[0].Pages)
	assert.Equal(t, doc.ID, fake.batches[0].Pages[0].ID)
	assert.Contains(t, fake.tokens, "Bearer session-token")
}

func TestSession_WidgetWriteTriggersRollup(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := openTestSession(t, srv.URL)
	waitReady(t, s)

	ctx := context.Background()

	pageID := NewDocumentID()
	page := &models.Document{
		ID:        pageID,
		Payload:   json.RawMessage(`{"title":"board","widget_count":0}`),
		UpdatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, s.Write(ctx, models.CollectionPages, page))

	widget := &models.Document{
		ID:        NewDocumentID(),
		Payload:   json.RawMessage(`{"page_id":"` + pageID + `","kind":"note"}`),
		UpdatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, s.Write(ctx, models.CollectionWidgets, widget))

	// Rollup пересчитан после правки дочерней коллекции
	got, err := s.Get(ctx, models.CollectionPages, pageID)
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.EqualValues(t, 1, payload["widget_count"])
}

func TestSession_DeleteWritesTombstone(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := openTestSession(t, srv.URL)
	waitReady(t, s)

	ctx := context.Background()
	doc := &models.Document{
		ID:        NewDocumentID(),
		Payload:   json.RawMessage(`{"title":"doomed"}`),
		UpdatedAt: 100,
	}
	require.NoError(t, s.Write(ctx, models.CollectionItems, doc))
	require.NoError(t, s.Delete(ctx, models.CollectionItems, doc.ID, 200))

	// Из списка запись исчезла, но tombstone остался в реплике
	docs, err := s.List(ctx, models.CollectionItems)
	require.NoError(t, err)
	assert.Empty(t, docs)

	got, err := s.Get(ctx, models.CollectionItems, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, int64(200), got.UpdatedAt)
}

func TestSession_SetTokenAffectsNextRequests(t *testing.T) {
	fake := &fakeServer{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s := openTestSession(t, srv.URL)
	waitReady(t, s)

	s.SetToken("rotated-token")

	doc := &models.Document{
		ID:        NewDocumentID(),
		Payload:   json.RawMessage(`{}`),
		UpdatedAt: time.Now().UnixMilli(),
	}
	require.NoError(t, s.Write(context.Background(), models.CollectionLinks, doc))

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		for _, tok := range fake.tokens {
			if tok == "Bearer rotated-token" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}
