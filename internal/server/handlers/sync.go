package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/boardsync/internal/models"
	syncsvc "github.com/iudanet/boardsync/internal/server/sync"
	"github.com/iudanet/boardsync/pkg/api"
)

// SyncHandler handles replication requests
type SyncHandler struct {
	logger  *slog.Logger
	gateway *syncsvc.Gateway
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, gateway *syncsvc.Gateway) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		gateway: gateway,
	}
}

// HandlePull обрабатывает GET /api/v1/sync/{collection}/pull
// Параметры: checkpoint_time (unix millis), checkpoint_id, limit.
// Пустой checkpoint означает "с самого начала".
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	collection, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()

	var checkpoint models.Checkpoint
	if v := query.Get("checkpoint_time"); v != "" {
		checkpoint.UpdatedAt, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.logger.Warn("Invalid checkpoint_time parameter", "value", v, "error", err)
			h.writeError(w, http.StatusBadRequest, "invalid checkpoint_time parameter")
			return
		}
	}
	checkpoint.LastID = query.Get("checkpoint_id")

	var limit int
	if v := query.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			h.logger.Warn("Invalid limit parameter", "value", v, "error", err)
			h.writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
	}

	result, err := h.gateway.Pull(ctx, userID, collection, checkpoint, limit)
	if err != nil {
		h.logger.Error("Pull failed", "error", err, "user_id", userID, "collection", collection)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.PullResponse{
		Documents: toAPIDocuments(result.Documents),
		Checkpoint: api.Checkpoint{
			UpdatedAt: result.Checkpoint.UpdatedAt,
			LastID:    result.Checkpoint.LastID,
		},
		HasMore: result.HasMore,
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandlePush обрабатывает POST /api/v1/sync/{collection}/push
// Тело — массив кандидатов, ответ — массив конфликтных записей
// в серверной авторитетной версии.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	collection, err := models.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conflicts, err := h.gateway.Push(ctx, userID, collection, toModelDocuments(req))
	if err != nil {
		h.handlePushError(w, err, userID, collection)
		return
	}

	h.writeJSON(w, http.StatusOK, api.PushResponse(toAPIDocuments(conflicts)))
}

// HandleBatchPush обрабатывает POST /api/v1/sync/batch/push
// Несколько коллекций одним запросом; ответ зеркалит форму запроса,
// неся по каждой коллекции ее конфликты.
func (h *SyncHandler) HandleBatchPush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req api.BatchPush
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode batch push request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch := make(map[models.Collection][]*models.Document)
	for _, collection := range models.Collections() {
		if rows := req.Rows(collection.String()); len(rows) > 0 {
			batch[collection] = toModelDocuments(rows)
		}
	}

	conflicts, err := h.gateway.PushBatch(ctx, userID, batch)
	if err != nil {
		h.handlePushError(w, err, userID, "batch")
		return
	}

	var resp api.BatchPush
	for collection, rows := range conflicts {
		resp.SetRows(collection.String(), toAPIDocuments(rows))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handlePushError различает ошибку валидации (весь батч отклонен,
// клиент должен показать это пользователю) и внутреннюю ошибку.
func (h *SyncHandler) handlePushError(w http.ResponseWriter, err error, userID string, collection any) {
	if errors.Is(err, syncsvc.ErrPayloadTooLarge) {
		h.logger.Warn("Push rejected by validation", "error", err, "user_id", userID, "collection", collection)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if errors.Is(err, syncsvc.ErrDocumentOwnership) {
		h.logger.Warn("Push rejected, foreign document id", "error", err, "user_id", userID, "collection", collection)
		h.writeError(w, http.StatusForbidden, err.Error())
		return
	}

	h.logger.Error("Push failed", "error", err, "user_id", userID, "collection", collection)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *SyncHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SyncHandler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, api.ErrorResponse{Error: msg})
}

// Конвертация между wire-форматом и внутренней моделью

func toModelDocuments(in []api.Document) []*models.Document {
	out := make([]*models.Document, 0, len(in))
	for _, d := range in {
		out = append(out, &models.Document{
			ID:        d.ID,
			UserID:    d.UserID,
			Payload:   d.Payload,
			UpdatedAt: d.UpdatedAt,
			Deleted:   d.Deleted,
		})
	}
	return out
}

func toAPIDocuments(in []*models.Document) []api.Document {
	out := make([]api.Document, 0, len(in))
	for _, d := range in {
		out = append(out, api.Document{
			ID:        d.ID,
			UserID:    d.UserID,
			Payload:   d.Payload,
			UpdatedAt: d.UpdatedAt,
			Deleted:   d.Deleted,
		})
	}
	return out
}
