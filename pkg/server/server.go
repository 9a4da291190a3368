package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nihonma/manabi/pkg/binder"
	"github.com/nihonma/manabi/pkg/config"
	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/syncer"
	"github.com/nihonma/manabi/pkg/tracker"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
)

// New builds the daemon's local HTTP API. The server binds to loopback in
// the default config and the PWA is the sole intended client, so there is
// no auth layer.
func New(cfg *config.Config, syncService *syncer.Service, trk *tracker.Tracker) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	syncer.RegisterRoutes(e, syncService)

	trackerGroup := e.Group("/tracker")
	tracker.RegisterRoutesWithGroup(trackerGroup, trk)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
