package models

// Checkpoint — курсор репликации: позиция "все до этой точки уже получено".
// Пара (UpdatedAt, LastID) задает тотальный порядок записей даже при
// совпадающих timestamps: равные UpdatedAt упорядочиваются по id
// лексикографически. Без компонента id записи с одинаковым временем на
// границе страницы могли бы пропускаться или дублироваться.
type Checkpoint struct {
	LastID    string `json:"last_id"`    // LastID id последней полученной записи
	UpdatedAt int64  `json:"updated_at"` // UpdatedAt её timestamp, unix millis
}

// IsZero возвращает true для пустого курсора ("с самого начала").
func (c Checkpoint) IsZero() bool {
	return c.UpdatedAt == 0 && c.LastID == ""
}

// Less возвращает true, если курсор c строго раньше other в порядке репликации.
func (c Checkpoint) Less(other Checkpoint) bool {
	if c.UpdatedAt != other.UpdatedAt {
		return c.UpdatedAt < other.UpdatedAt
	}
	return c.LastID < other.LastID
}

// Compare возвращает -1, 0 или 1 — положение c относительно other.
func (c Checkpoint) Compare(other Checkpoint) int {
	switch {
	case c.Less(other):
		return -1
	case other.Less(c):
		return 1
	default:
		return 0
	}
}
