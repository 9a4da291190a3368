package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/nihonma/manabi/pkg/progress"
	"github.com/nihonma/manabi/pkg/syncer"
	"github.com/robinjoseph08/golib/logger"
)

// Sample is a point-in-time playback reading. TotalSeconds of zero means
// the duration is not yet known.
type Sample struct {
	PositionSeconds int
	TotalSeconds    int
}

// PositionFunc reports the current playback position. Returning false
// means there is nothing new to persist this tick.
type PositionFunc func() (Sample, bool)

// Tracker throttles playback progress into periodic SaveProgress calls.
// At most one session exists per (user, item) pair; starting a second
// one replaces the first, and stopping always tears the sampler down,
// flushing a final sample so no watch time is lost on pause.
type Tracker struct {
	syncService *syncer.Service
	interval    time.Duration
	log         logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	userID        string
	catalogItemID string
	fn            PositionFunc

	sampleMu sync.Mutex
	latest   *Sample

	stop chan struct{}
	done chan struct{}
}

func New(syncService *syncer.Service, interval time.Duration) *Tracker {
	return &Tracker{
		syncService: syncService,
		interval:    interval,
		log:         logger.New(),
		sessions:    make(map[string]*session),
	}
}

func sessionKey(userID, catalogItemID string) string {
	return userID + "\x00" + catalogItemID
}

// Start begins sampling for a (user, item) pair. A nil fn makes the
// session report-driven: positions arrive via Report and are persisted
// at most once per interval. Any existing session for the pair is
// stopped first.
func (t *Tracker) Start(userID, catalogItemID string, fn PositionFunc) {
	key := sessionKey(userID, catalogItemID)

	t.mu.Lock()
	prev := t.sessions[key]
	s := &session{
		userID:        userID,
		catalogItemID: catalogItemID,
		fn:            fn,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	t.sessions[key] = s
	t.mu.Unlock()

	if prev != nil {
		prev.shutdown()
	}

	t.log.Info("tracker session started", logger.Data{
		"user_id":         userID,
		"catalog_item_id": catalogItemID,
	})

	go t.run(s)
}

// Report feeds a playback reading into a report-driven session. Readings
// for a pair with no active session are dropped.
func (t *Tracker) Report(userID, catalogItemID string, sample Sample) bool {
	t.mu.Lock()
	s := t.sessions[sessionKey(userID, catalogItemID)]
	t.mu.Unlock()

	if s == nil {
		return false
	}

	s.sampleMu.Lock()
	s.latest = &sample
	s.sampleMu.Unlock()
	return true
}

// Stop tears down the session for a pair, flushing one final sample
// first. Stopping a pair with no session is a no-op.
func (t *Tracker) Stop(userID, catalogItemID string) {
	key := sessionKey(userID, catalogItemID)

	t.mu.Lock()
	s := t.sessions[key]
	delete(t.sessions, key)
	t.mu.Unlock()

	if s == nil {
		return
	}

	s.shutdown()

	t.log.Info("tracker session stopped", logger.Data{
		"user_id":         userID,
		"catalog_item_id": catalogItemID,
	})
}

// StopAll tears down every active session. Called on daemon shutdown.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	sessions := make([]*session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.sessions = make(map[string]*session)
	t.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
	}
}

// ActiveCount reports the number of live sessions.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *Tracker) run(s *session) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			// Flush the last reading so a pause right before a tick
			// doesn't drop up to a full interval of watch time.
			t.persist(s)
			close(s.done)
			return
		case <-ticker.C:
			t.persist(s)
		}
	}
}

func (t *Tracker) persist(s *session) {
	sample, ok := s.take()
	if !ok {
		return
	}

	_, _, err := t.syncService.SaveProgress(context.Background(), progress.Observation{
		UserID:              s.userID,
		CatalogItemID:       s.catalogItemID,
		WatchedSeconds:      sample.PositionSeconds,
		TotalSeconds:        sample.TotalSeconds,
		LastPositionSeconds: sample.PositionSeconds,
		Now:                 time.Now(),
	})
	if err != nil {
		t.log.Err(err).Warn("tracker save progress error")
	}
}

func (s *session) take() (Sample, bool) {
	if s.fn != nil {
		return s.fn()
	}

	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()
	if s.latest == nil {
		return Sample{}, false
	}
	sample := *s.latest
	s.latest = nil
	return sample, true
}

func (s *session) shutdown() {
	close(s.stop)
	<-s.done
}
