package localstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/migrations"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func intPtr(i int) *int {
	return &i
}

func TestGetCatalogItem_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.GetCatalogItem(context.Background(), "missing")
	assert.True(t, errors.Is(err, errcodes.NotFound("Catalog item")))
}

func TestBulkPutCatalogItems_UpsertsInPlace(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	items := []*models.CatalogItem{
		{ID: "vid-1", Title: "Lesson 1", PlaylistPosition: intPtr(1), CreatedAt: now, UpdatedAt: now},
		{ID: "vid-2", Title: "Lesson 2", PlaylistPosition: intPtr(2), CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, svc.BulkPutCatalogItems(ctx, items))

	// A refreshed fetch with a changed title must update, not duplicate.
	items[0].Title = "Lesson 1 (remastered)"
	require.NoError(t, svc.BulkPutCatalogItems(ctx, items))

	got, err := svc.ListCatalogItems(ctx, ListCatalogItemsOptions{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Lesson 1 (remastered)", got[0].Title)
	assert.Equal(t, "vid-1", got[0].ID)
	assert.Equal(t, "vid-2", got[1].ID)
}

func TestListCatalogItems_OrderAndPagination(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	items := []*models.CatalogItem{
		{ID: "vid-3", Title: "Lesson 3", PlaylistPosition: intPtr(3), CreatedAt: now, UpdatedAt: now},
		{ID: "vid-1", Title: "Lesson 1", PlaylistPosition: intPtr(1), CreatedAt: now, UpdatedAt: now},
		{ID: "vid-2", Title: "Lesson 2", PlaylistPosition: intPtr(2), CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, svc.BulkPutCatalogItems(ctx, items))

	got, err := svc.ListCatalogItems(ctx, ListCatalogItemsOptions{
		Limit:  intPtr(2),
		Offset: intPtr(1),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "vid-2", got[0].ID)
	assert.Equal(t, "vid-3", got[1].ID)
}

func TestPutProgress_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := &models.ProgressRecord{
		ID:                  "rec-1",
		UserID:              "user-1",
		CatalogItemID:       "vid-1",
		WatchedSeconds:      120,
		TotalSeconds:        intPtr(600),
		LastPositionSeconds: 120,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, svc.PutProgress(ctx, rec))

	got, err := svc.GetProgressByUserItem(ctx, "user-1", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, 120, got.WatchedSeconds)
	require.NotNil(t, got.TotalSeconds)
	assert.Equal(t, 600, *got.TotalSeconds)
	assert.False(t, got.Completed)

	// Upsert on the same id replaces the mutable fields.
	rec.WatchedSeconds = 540
	rec.Completed = true
	completedAt := now.Add(time.Minute)
	rec.CompletedAt = &completedAt
	require.NoError(t, svc.PutProgress(ctx, rec))

	got, err = svc.GetProgressByUserItem(ctx, "user-1", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 540, got.WatchedSeconds)
	assert.True(t, got.Completed)
	require.NotNil(t, got.CompletedAt)
}

func TestBulkPutProgress_MergesByUserItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, svc.PutProgress(ctx, &models.ProgressRecord{
		ID: "local-1", UserID: "user-1", CatalogItemID: "vid-1", WatchedSeconds: 300, CreatedAt: now, UpdatedAt: now,
	}))

	// A remote row for the same pair can carry a different ID. The pair is
	// what identifies the record; the fetched values land on the local row.
	require.NoError(t, svc.BulkPutProgress(ctx, []*models.ProgressRecord{
		{ID: "remote-7", UserID: "user-1", CatalogItemID: "vid-1", WatchedSeconds: 450, CreatedAt: now, UpdatedAt: now.Add(time.Minute)},
	}))

	got, err := svc.ListProgressByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 450, got[0].WatchedSeconds)
}

func TestGetProgressByUserItem_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.GetProgressByUserItem(context.Background(), "user-1", "vid-1")
	assert.True(t, errors.Is(err, errcodes.NotFound("Progress record")))
}

func TestListProgressByUser_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, svc.PutProgress(ctx, &models.ProgressRecord{
		ID: "rec-1", UserID: "user-1", CatalogItemID: "vid-1", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, svc.PutProgress(ctx, &models.ProgressRecord{
		ID: "rec-2", UserID: "user-2", CatalogItemID: "vid-1", CreatedAt: now, UpdatedAt: now,
	}))

	got, err := svc.ListProgressByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rec-1", got[0].ID)
}

func TestPutNote_UpsertByUserItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	note := &models.NoteRecord{
		ID:            "note-1",
		UserID:        "user-1",
		CatalogItemID: "vid-1",
		Content:       "first draft",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, svc.PutNote(ctx, note))

	note.Content = "second draft"
	note.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, svc.PutNote(ctx, note))

	got, err := svc.GetNoteByUserItem(ctx, "user-1", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, "second draft", got.Content)

	notes, err := svc.ListNotesByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestGetNoteByUserItem_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)

	_, err := svc.GetNoteByUserItem(context.Background(), "user-1", "vid-1")
	assert.True(t, errors.Is(err, errcodes.NotFound("Note")))
}
