// Package api реализует HTTP клиент протокола синхронизации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

//go:generate moq -out client_mock.go . ClientAPI

// ErrUnauthorized возвращается на 401: токен невалиден, сессия должна
// быть разорвана. Ретраить такой запрос бессмысленно.
var ErrUnauthorized = errors.New("unauthorized")

// ClientAPI определяет интерфейс для api.Client
type ClientAPI interface {
	// Pull запрашивает страницу изменений коллекции после checkpoint
	Pull(ctx context.Context, accessToken string, collection models.Collection, checkpoint models.Checkpoint, limit int) (*api.PullResponse, error)

	// Push отправляет кандидатов одной коллекции, возвращает конфликты
	Push(ctx context.Context, accessToken string, collection models.Collection, docs []api.Document) (api.PushResponse, error)

	// PushBatch отправляет кандидатов нескольких коллекций одним запросом
	PushBatch(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Pull запрашивает страницу изменений коллекции после checkpoint
func (c *Client) Pull(ctx context.Context, accessToken string, collection models.Collection, checkpoint models.Checkpoint, limit int) (*api.PullResponse, error) {
	path := fmt.Sprintf("/api/v1/sync/%s/pull?checkpoint_time=%d&checkpoint_id=%s&limit=%d",
		collection, checkpoint.UpdatedAt, url.QueryEscape(checkpoint.LastID), limit)

	var resp api.PullResponse
	if err := c.doRequest(ctx, http.MethodGet, path, accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("pull request failed: %w", err)
	}
	return &resp, nil
}

// Push отправляет кандидатов одной коллекции, возвращает конфликты
func (c *Client) Push(ctx context.Context, accessToken string, collection models.Collection, docs []api.Document) (api.PushResponse, error) {
	path := fmt.Sprintf("/api/v1/sync/%s/push", collection)

	var resp api.PushResponse
	if err := c.doRequest(ctx, http.MethodPost, path, accessToken, docs, &resp); err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	return resp, nil
}

// PushBatch отправляет кандидатов нескольких коллекций одним запросом
func (c *Client) PushBatch(ctx context.Context, accessToken string, req api.BatchPush) (*api.BatchPush, error) {
	var resp api.BatchPush
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/sync/batch/push", accessToken, req, &resp); err != nil {
		return nil, fmt.Errorf("batch push request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, body, result interface{}) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Читаем тело ответа
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// 401 различаем отдельно: владелец сессии должен ее разорвать
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, string(respBody))
	}

	// Проверяем статус код
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	// Декодируем успешный ответ
	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
