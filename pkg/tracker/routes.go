package tracker

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutesWithGroup registers tracker session routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, t *Tracker) {
	h := &handler{
		tracker: t,
	}

	g.POST("/start", h.start)
	g.POST("/report", h.report)
	g.POST("/stop", h.stop)
}
