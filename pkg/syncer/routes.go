package syncer

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the sync engine's local API onto the echo instance.
func RegisterRoutes(e *echo.Echo, svc *Service) {
	h := &handler{
		syncService: svc,
	}

	e.GET("/catalog", h.listCatalog)
	e.GET("/catalog/:id", h.getCatalogItem)
	e.GET("/progress", h.listProgress)
	e.PUT("/progress", h.saveProgress)
	e.POST("/progress/toggle", h.toggleCompleted)
	e.GET("/notes", h.listNotes)
	e.PUT("/notes", h.saveNote)
	e.GET("/sync/status", h.status)
	e.POST("/sync/flush", h.flush)
}
