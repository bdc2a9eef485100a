package models

import "encoding/json"

// Document представляет одну реплицируемую запись коллекции.
// Payload — непрозрачные для протокола данные конкретной коллекции
// (геометрия виджета, содержимое страницы и т.д.), протокол их не трактует.
type Document struct {
	ID        string          `json:"id"`         // ID уникальный идентификатор записи (UUID)
	UserID    string          `json:"user_id"`    // UserID владелец; на сервере всегда берется из токена
	Payload   json.RawMessage `json:"payload"`    // Payload данные коллекции
	UpdatedAt int64           `json:"updated_at"` // UpdatedAt время последней записи, unix millis
	Deleted   bool            `json:"deleted"`    // Deleted флаг soft delete (tombstone)
}

// IsNewerThan сравнивает две версии одной записи по правилу LWW (Last-Write-Wins):
// побеждает версия с большим UpdatedAt. Возвращает true, если текущая версия новее.
// Равные timestamps новее не считаются: повторный push той же версии не конфликт.
func (d *Document) IsNewerThan(other *Document) bool {
	return d.UpdatedAt > other.UpdatedAt
}

// Cursor возвращает позицию записи в порядке репликации (updated_at, id).
func (d *Document) Cursor() Checkpoint {
	return Checkpoint{UpdatedAt: d.UpdatedAt, LastID: d.ID}
}

// Clone создает глубокую копию записи
func (d *Document) Clone() *Document {
	payload := make(json.RawMessage, len(d.Payload))
	copy(payload, d.Payload)

	return &Document{
		ID:        d.ID,
		UserID:    d.UserID,
		Payload:   payload,
		UpdatedAt: d.UpdatedAt,
		Deleted:   d.Deleted,
	}
}
