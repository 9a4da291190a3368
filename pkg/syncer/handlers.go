package syncer

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/localstore"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/nihonma/manabi/pkg/progress"
	"github.com/nihonma/manabi/pkg/remote"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

type handler struct {
	syncService *Service
}

// writeError translates remote rejections into client-visible errors. The
// record is locally saved by the time these surface; the status tells the
// UI the remote copy disagrees.
func writeError(err error) error {
	switch {
	case errors.Is(err, remote.ErrConflict):
		return errcodes.Conflict("The remote rejected this write due to a conflicting record.")
	case errors.Is(err, remote.ErrValidation):
		return errcodes.ValidationError("The remote rejected this write as malformed.")
	}
	return errors.WithStack(err)
}

func (h *handler) saveProgress(c echo.Context) error {
	ctx := c.Request().Context()

	params := SaveProgressPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	rec, outcome, err := h.syncService.SaveProgress(ctx, progress.Observation{
		UserID:              params.UserID,
		CatalogItemID:       params.CatalogItemID,
		WatchedSeconds:      params.WatchedSeconds,
		TotalSeconds:        params.TotalSeconds,
		LastPositionSeconds: params.LastPositionSeconds,
		Now:                 time.Now(),
	})
	if err != nil {
		return writeError(err)
	}

	response := struct {
		*models.ProgressRecord
		Sync Outcome `json:"sync"`
	}{rec, outcome}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) toggleCompleted(c echo.Context) error {
	ctx := c.Request().Context()

	params := ToggleCompletedPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	rec, outcome, err := h.syncService.ToggleCompleted(ctx, params.UserID, params.CatalogItemID)
	if err != nil {
		return writeError(err)
	}

	response := struct {
		*models.ProgressRecord
		Sync Outcome `json:"sync"`
	}{rec, outcome}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) listProgress(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListByUserQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	recs, degraded, err := h.syncService.ListProgress(ctx, params.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	type progressRow struct {
		*models.ProgressRecord
		Percent int `json:"percent"`
	}

	rows := make([]progressRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, progressRow{rec, rec.Percent()})
	}

	response := map[string]any{
		"progress_records": rows,
		"degraded":         degraded,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) saveNote(c echo.Context) error {
	ctx := c.Request().Context()

	params := SaveNotePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	note, outcome, err := h.syncService.SaveNote(ctx, params.UserID, params.CatalogItemID, params.Content)
	if err != nil {
		return writeError(err)
	}

	response := struct {
		*models.NoteRecord
		Sync Outcome `json:"sync"`
	}{note, outcome}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) listNotes(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListByUserQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	notes, degraded, err := h.syncService.ListNotes(ctx, params.UserID)
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"note_records": notes,
		"degraded":     degraded,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) listCatalog(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListCatalogQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	items, degraded, err := h.syncService.ListCatalog(ctx, localstore.ListCatalogItemsOptions{
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"catalog_items": items,
		"degraded":      degraded,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) getCatalogItem(c echo.Context) error {
	ctx := c.Request().Context()

	item, err := h.syncService.GetCatalogItem(ctx, c.Param("id"))
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	pending, err := h.syncService.PendingCount(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"online":  h.syncService.Online(),
		"pending": pending,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}

func (h *handler) flush(c echo.Context) error {
	ctx := c.Request().Context()

	applied, err := h.syncService.Flush(ctx)
	response := map[string]any{
		"applied": applied,
		"halted":  err != nil,
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Err(err).Warn("manual flush halted")
	}

	pending, perr := h.syncService.PendingCount(ctx)
	if perr != nil {
		return errors.WithStack(perr)
	}
	response["pending"] = pending

	return errors.WithStack(c.JSON(http.StatusOK, response))
}
