// Package api содержит wire-типы протокола синхронизации.
// Общие для сервера и клиента, других зависимостей не имеют.
package api

import "encoding/json"

// Document представляет одну запись коллекции в протоколе
type Document struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt int64           `json:"updated_at"` // unix millis
	Deleted   bool            `json:"deleted"`
}

// Checkpoint — курсор pull-репликации: (updated_at, last_id)
type Checkpoint struct {
	LastID    string `json:"last_id"`
	UpdatedAt int64  `json:"updated_at"`
}

// PullResponse — ответ GET /api/v1/sync/{collection}/pull
type PullResponse struct {
	Documents  []Document `json:"documents"`
	Checkpoint Checkpoint `json:"checkpoint"` // курсор для следующего pull
	HasMore    bool       `json:"has_more"`   // страница была полной, надо сразу тянуть дальше
}

// PushRequest — тело POST /api/v1/sync/{collection}/push
type PushRequest []Document

// PushResponse — конфликтные записи в авторитетной серверной версии.
// Пустой список означает, что все записи приняты.
type PushResponse []Document

// BatchPush — тело и ответ POST /api/v1/sync/batch/push.
// В запросе каждое поле несет кандидатов соответствующей коллекции,
// в ответе — ее конфликты. Отсутствующие коллекции опускаются.
type BatchPush struct {
	Pages   []Document `json:"pages,omitempty"`
	Widgets []Document `json:"widgets,omitempty"`
	Links   []Document `json:"links,omitempty"`
	Items   []Document `json:"items,omitempty"`
}

// Rows возвращает записи коллекции по ее имени.
func (b *BatchPush) Rows(collection string) []Document {
	switch collection {
	case "pages":
		return b.Pages
	case "widgets":
		return b.Widgets
	case "links":
		return b.Links
	case "items":
		return b.Items
	default:
		return nil
	}
}

// SetRows устанавливает записи коллекции по ее имени.
func (b *BatchPush) SetRows(collection string, rows []Document) {
	switch collection {
	case "pages":
		b.Pages = rows
	case "widgets":
		b.Widgets = rows
	case "links":
		b.Links = rows
	case "items":
		b.Items = rows
	}
}

// IsEmpty возвращает true, если батч не несет ни одной записи.
func (b *BatchPush) IsEmpty() bool {
	return len(b.Pages) == 0 && len(b.Widgets) == 0 && len(b.Links) == 0 && len(b.Items) == 0
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
