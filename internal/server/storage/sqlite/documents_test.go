package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/internal/server/storage"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

func testDoc(id, userID string, updatedAt int64) *models.Document {
	return &models.Document{
		ID:        id,
		UserID:    userID,
		Payload:   json.RawMessage(`{"title":"board"}`),
		UpdatedAt: updatedAt,
	}
}

func TestStorage_UpsertGetDocument(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	doc := testDoc(uuid.New().String(), "user1", 100)
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, doc))

	got, err := s.GetDocument(ctx, models.CollectionPages, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	// Повторный upsert той же версии — одна запись, не дубликат
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, doc))

	docs, err := s.ListDocumentsAfter(ctx, models.CollectionPages, "user1", models.Checkpoint{}, 10)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStorage_GetDocument_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetDocument(ctx, models.CollectionPages, "missing")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestStorage_GetDocument_ReturnsTombstone(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	doc := testDoc(uuid.New().String(), "user1", 100)
	doc.Deleted = true
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, doc))

	// Tombstone участвует в проверке конфликтов, поэтому возвращается
	got, err := s.GetDocument(ctx, models.CollectionPages, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
}

func TestStorage_UpsertDocument_Replace(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	id := uuid.New().String()
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionWidgets, testDoc(id, "user1", 100)))

	updated := testDoc(id, "user1", 200)
	updated.Payload = json.RawMessage(`{"title":"renamed"}`)
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionWidgets, updated))

	got, err := s.GetDocument(ctx, models.CollectionWidgets, id)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.UpdatedAt)
	assert.Equal(t, updated.Payload, got.Payload)
}

func TestStorage_ListDocumentsAfter_Order(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	// Вставляем в перемешанном порядке
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("c", "user1", 100)))
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("a", "user1", 200)))
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("b", "user1", 100)))

	docs, err := s.ListDocumentsAfter(ctx, models.CollectionPages, "user1", models.Checkpoint{}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// (updated_at ASC, id ASC)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)
	assert.Equal(t, "a", docs[2].ID)
}

func TestStorage_ListDocumentsAfter_UserScoped(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("a", "user1", 100)))
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("b", "user2", 100)))

	docs, err := s.ListDocumentsAfter(ctx, models.CollectionPages, "user1", models.Checkpoint{}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
}

func TestStorage_ListDocumentsAfter_CollectionScoped(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	require.NoError(t, s.UpsertDocument(ctx, models.CollectionPages, testDoc("a", "user1", 100)))
	require.NoError(t, s.UpsertDocument(ctx, models.CollectionWidgets, testDoc("b", "user1", 100)))

	docs, err := s.ListDocumentsAfter(ctx, models.CollectionWidgets, "user1", models.Checkpoint{}, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0].ID)
}

// Сценарий из протокола: три записи с одинаковым updated_at, страницы по 2.
// Пагинация по паре (updated_at, id) не теряет и не дублирует записи.
func TestStorage_ListDocumentsAfter_EqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	const ts = int64(500)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.UpsertDocument(ctx, models.CollectionItems, testDoc(id, "user1", ts)))
	}

	page1, err := s.ListDocumentsAfter(ctx, models.CollectionItems, "user1", models.Checkpoint{}, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "a", page1[0].ID)
	assert.Equal(t, "b", page1[1].ID)

	cursor := models.Checkpoint{UpdatedAt: ts, LastID: "b"}
	page2, err := s.ListDocumentsAfter(ctx, models.CollectionItems, "user1", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "c", page2[0].ID)

	// Дальше пусто
	cursor = models.Checkpoint{UpdatedAt: ts, LastID: "c"}
	page3, err := s.ListDocumentsAfter(ctx, models.CollectionItems, "user1", cursor, 2)
	require.NoError(t, err)
	assert.Empty(t, page3)
}

// Свойство тотальности курсора: N записей с одним timestamp, страница P < N —
// повторные pull до пустой страницы дают каждый id ровно один раз.
func TestStorage_ListDocumentsAfter_CursorTotality(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	const n = 25
	const pageSize = 4
	want := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("doc-%02d", i)
		want[id] = true
		require.NoError(t, s.UpsertDocument(ctx, models.CollectionItems, testDoc(id, "user1", 777)))
	}

	seen := make(map[string]bool)
	cursor := models.Checkpoint{}
	for {
		docs, err := s.ListDocumentsAfter(ctx, models.CollectionItems, "user1", cursor, pageSize)
		require.NoError(t, err)
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			require.False(t, seen[doc.ID], "document %s delivered twice", doc.ID)
			seen[doc.ID] = true
		}
		cursor = docs[len(docs)-1].Cursor()
	}

	assert.Equal(t, want, seen)
}
