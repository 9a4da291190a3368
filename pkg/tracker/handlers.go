package tracker

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct {
	tracker *Tracker
}

func (h *handler) start(c echo.Context) error {
	params := StartSessionPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Report-driven session: positions arrive via the report endpoint.
	h.tracker.Start(params.UserID, params.CatalogItemID, nil)

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) report(c echo.Context) error {
	params := ReportPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	ok := h.tracker.Report(params.UserID, params.CatalogItemID, Sample{
		PositionSeconds: params.PositionSeconds,
		TotalSeconds:    params.TotalSeconds,
	})
	if !ok {
		return errcodes.NotFound("Tracker session")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) stop(c echo.Context) error {
	params := StopSessionPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	h.tracker.Stop(params.UserID, params.CatalogItemID)

	return c.NoContent(http.StatusNoContent)
}
