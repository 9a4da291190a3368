package connectivity

import (
	"context"
	"time"

	"github.com/nihonma/manabi/pkg/remote"
	"github.com/robinjoseph08/golib/logger"
)

// Prober periodically pings the remote gateway and feeds the result into
// the Monitor. It is the daemon's substitute for platform online/offline
// events: the monitor only ever sees an opaque boolean.
type Prober struct {
	monitor  *Monitor
	gateway  remote.Gateway
	interval time.Duration
	log      logger.Logger

	shutdown chan struct{}
	done     chan struct{}
}

func NewProber(monitor *Monitor, gateway remote.Gateway, interval time.Duration) *Prober {
	return &Prober{
		monitor:  monitor,
		gateway:  gateway,
		interval: interval,
		log:      logger.New(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *Prober) Start() {
	go p.run()
}

func (p *Prober) run() {
	defer close(p.done)

	// Probe immediately so the daemon doesn't sit offline for a full
	// interval after startup.
	p.probe()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.probe()
		}
	}
}

func (p *Prober) probe() {
	err := p.gateway.Ping(context.Background())
	online := err == nil

	if online != p.monitor.Online() {
		if online {
			p.log.Info("remote reachable again")
		} else {
			p.log.Err(err).Warn("remote unreachable")
		}
	}

	p.monitor.SetOnline(online)
}

func (p *Prober) Stop() {
	close(p.shutdown)
	<-p.done
}
