package syncer

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nihonma/manabi/pkg/binder"
	"github.com/nihonma/manabi/pkg/connectivity"
	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/localstore"
	"github.com/nihonma/manabi/pkg/migrations"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/nihonma/manabi/pkg/syncqueue"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestHandler(t *testing.T) (*handler, *fakeGateway, *connectivity.Monitor, *echo.Echo) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	gw := &fakeGateway{}
	monitor := connectivity.NewMonitor()
	svc := NewService(localstore.NewService(db), syncqueue.NewService(db), gw, monitor)
	h := &handler{syncService: svc}

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b

	return h, gw, monitor, e
}

func TestHandler_SaveProgress(t *testing.T) {
	h, _, monitor, e := setupTestHandler(t)
	monitor.SetOnline(true)

	body := `{"user_id":"user-1","catalog_item_id":"vid-1","watched_seconds":120,"total_seconds":600,"last_position_seconds":120}`
	req := httptest.NewRequest(http.MethodPut, "/progress", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.saveProgress(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID         string `json:"user_id"`
		WatchedSeconds int    `json:"watched_seconds"`
		Sync           string `json:"sync"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user-1", resp.UserID)
	assert.Equal(t, 120, resp.WatchedSeconds)
	assert.Equal(t, "synced", resp.Sync)
}

func TestHandler_SaveProgress_OfflineReportsQueued(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	body := `{"user_id":"user-1","catalog_item_id":"vid-1","watched_seconds":60,"last_position_seconds":60}`
	req := httptest.NewRequest(http.MethodPut, "/progress", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.saveProgress(c))

	var resp struct {
		Sync string `json:"sync"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Sync)
}

func TestHandler_SaveProgress_MissingUserID(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	body := `{"catalog_item_id":"vid-1","watched_seconds":60}`
	req := httptest.NewRequest(http.MethodPut, "/progress", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.saveProgress(c)
	assert.Error(t, err)
}

func TestHandler_ToggleCompleted(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	body := `{"user_id":"user-1","catalog_item_id":"vid-1"}`
	req := httptest.NewRequest(http.MethodPost, "/progress/toggle", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.toggleCompleted(c))

	var resp struct {
		Completed bool `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Completed)
}

func TestHandler_ListProgress(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	body := `{"user_id":"user-1","catalog_item_id":"vid-1","watched_seconds":30,"total_seconds":600,"last_position_seconds":30}`
	req := httptest.NewRequest(http.MethodPut, "/progress", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	require.NoError(t, h.saveProgress(c))

	req = httptest.NewRequest(http.MethodGet, "/progress?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	require.NoError(t, h.listProgress(c))

	var resp struct {
		ProgressRecords []map[string]any `json:"progress_records"`
		Degraded        bool             `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ProgressRecords, 1)
	assert.EqualValues(t, 5, resp.ProgressRecords[0]["percent"])
	// Offline, so the list is served from the local cache.
	assert.True(t, resp.Degraded)
}

func TestHandler_GetCatalogItem(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	require.NoError(t, h.syncService.store.BulkPutCatalogItems(context.Background(), []*models.CatalogItem{
		{ID: "vid-1", Title: "Intro to Hiragana"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/catalog/vid-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("vid-1")
	require.NoError(t, h.getCatalogItem(c))

	var item models.CatalogItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	assert.Equal(t, "Intro to Hiragana", item.Title)
}

func TestHandler_GetCatalogItem_NotFound(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog/missing", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.getCatalogItem(c)
	assert.True(t, errors.Is(err, errcodes.NotFound("Catalog item")))
}

func TestHandler_SaveNote(t *testing.T) {
	h, _, _, e := setupTestHandler(t)

	body := `{"user_id":"user-1","catalog_item_id":"vid-1","content":"kanji practice at 3:10"}`
	req := httptest.NewRequest(http.MethodPut, "/notes", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.saveNote(c))

	var resp struct {
		Content string `json:"content"`
		Sync    string `json:"sync"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "kanji practice at 3:10", resp.Content)
	assert.Equal(t, "queued", resp.Sync)
}

func TestHandler_Status(t *testing.T) {
	h, _, monitor, e := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.status(c))

	var resp struct {
		Online  bool `json:"online"`
		Pending int  `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Online)
	assert.Equal(t, 0, resp.Pending)

	monitor.SetOnline(true)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/sync/status", nil), rec)
	require.NoError(t, h.status(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Online)
}

func TestHandler_Flush(t *testing.T) {
	h, gw, _, e := setupTestHandler(t)

	// Queue a write while offline.
	body := `{"user_id":"user-1","catalog_item_id":"vid-1","watched_seconds":60,"last_position_seconds":60}`
	req := httptest.NewRequest(http.MethodPut, "/progress", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	require.NoError(t, h.saveProgress(c))

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/sync/flush", nil), rec)
	require.NoError(t, h.flush(c))

	var resp struct {
		Applied int  `json:"applied"`
		Halted  bool `json:"halted"`
		Pending int  `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Applied)
	assert.False(t, resp.Halted)
	assert.Equal(t, 0, resp.Pending)
	assert.Equal(t, 1, gw.writeCount())
}
