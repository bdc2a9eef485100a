package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

func TestClient_Pull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/pages/pull", r.URL.Path)
		assert.Equal(t, "Bearer token123", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("checkpoint_time"))
		assert.Equal(t, "p1", q.Get("checkpoint_id"))
		assert.Equal(t, "50", q.Get("limit"))

		resp := api.PullResponse{
			Documents:  []api.Document{{ID: "p2", UpdatedAt: 200}},
			Checkpoint: api.Checkpoint{UpdatedAt: 200, LastID: "p2"},
			HasMore:    false,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Pull(context.Background(), "token123", models.CollectionPages,
		models.Checkpoint{UpdatedAt: 100, LastID: "p1"}, 50)
	require.NoError(t, err)
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "p2", resp.Documents[0].ID)
	assert.False(t, resp.HasMore)
}

func TestClient_Push(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sync/widgets/push", r.URL.Path)

		var docs []api.Document
		require.NoError(t, json.NewDecoder(r.Body).Decode(&docs))
		require.Len(t, docs, 1)

		// Сервер отвечает конфликтом
		_ = json.NewEncoder(w).Encode([]api.Document{{ID: docs[0].ID, UpdatedAt: 999}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	conflicts, err := client.Push(context.Background(), "token123", models.CollectionWidgets,
		[]api.Document{{ID: "w1", UpdatedAt: 100}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(999), conflicts[0].UpdatedAt)
}

func TestClient_PushBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/batch/push", r.URL.Path)

		var req api.BatchPush
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Pages, 1)
		assert.Len(t, req.Items, 2)

		_ = json.NewEncoder(w).Encode(api.BatchPush{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.PushBatch(context.Background(), "token123", api.BatchPush{
		Pages: []api.Document{{ID: "p1"}},
		Items: []api.Document{{ID: "i1"}, {ID: "i2"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.Pull(context.Background(), "expired", models.CollectionPages, models.Checkpoint{}, 10)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.Push(context.Background(), "expired", models.CollectionPages, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.PushBatch(context.Background(), "expired", api.BatchPush{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "unknown collection \"users\""})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Pull(context.Background(), "token", models.CollectionPages, models.Checkpoint{}, 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "unknown collection")
}

func TestClient_TransportError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1") // закрытый порт

	_, err := client.Pull(context.Background(), "token", models.CollectionPages, models.Checkpoint{}, 10)
	assert.Error(t, err)
}
