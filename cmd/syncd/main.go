package main

import (
	"context"
	"net"
	"net/http"

	"github.com/nihonma/manabi/pkg/config"
	"github.com/nihonma/manabi/pkg/connectivity"
	"github.com/nihonma/manabi/pkg/database"
	"github.com/nihonma/manabi/pkg/localstore"
	"github.com/nihonma/manabi/pkg/migrations"
	"github.com/nihonma/manabi/pkg/remote"
	"github.com/nihonma/manabi/pkg/server"
	"github.com/nihonma/manabi/pkg/syncer"
	"github.com/nihonma/manabi/pkg/syncqueue"
	"github.com/nihonma/manabi/pkg/tracker"
	"github.com/nihonma/manabi/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	log.Info("starting manabi syncd", logger.Data{
		"version":  version.Version,
		"hostname": cfg.Hostname,
	})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	gateway := remote.NewClient(cfg)
	monitor := connectivity.NewMonitor()
	prober := connectivity.NewProber(monitor, gateway, cfg.ProbeInterval())

	storeService := localstore.NewService(db)
	queueService := syncqueue.NewService(db)

	syncService := syncer.NewService(storeService, queueService, gateway, monitor)
	syncService.Start()

	trk := tracker.New(syncService, cfg.SampleInterval())

	srv, err := server.New(cfg, syncService, trk)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", srv.Addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		log.Info("server started", logger.Data{"addr": listener.Addr().String()})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	prober.Start()
	log.Info("connectivity prober started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	trk.StopAll()
	log.Info("tracker sessions stopped")

	prober.Stop()
	syncService.Stop()
	log.Info("sync engine stopped")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}
