package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nihonma/manabi/pkg/connectivity"
	"github.com/nihonma/manabi/pkg/localstore"
	"github.com/nihonma/manabi/pkg/migrations"
	"github.com/nihonma/manabi/pkg/remote"
	"github.com/nihonma/manabi/pkg/syncer"
	"github.com/nihonma/manabi/pkg/syncqueue"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fakeGateway struct{}

func (g *fakeGateway) Fetch(_ context.Context, _ string, _ remote.Filter) ([]json.RawMessage, error) {
	return nil, nil
}

func (g *fakeGateway) Write(_ context.Context, _, _ string, _ json.RawMessage) error {
	return nil
}

func (g *fakeGateway) Ping(_ context.Context) error {
	return nil
}

func newTestSyncer(t *testing.T) (*syncer.Service, *localstore.Service) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	store := localstore.NewService(db)
	monitor := connectivity.NewMonitor()
	monitor.SetOnline(true)

	return syncer.NewService(store, syncqueue.NewService(db), &fakeGateway{}, monitor), store
}

func TestTracker_SamplesPeriodically(t *testing.T) {
	syncService, store := newTestSyncer(t)
	trk := New(syncService, 10*time.Millisecond)

	trk.Start("user-1", "vid-1", func() (Sample, bool) {
		return Sample{PositionSeconds: 42, TotalSeconds: 600}, true
	})
	defer trk.Stop("user-1", "vid-1")

	require.Eventually(t, func() bool {
		rec, err := store.GetProgressByUserItem(context.Background(), "user-1", "vid-1")
		return err == nil && rec.WatchedSeconds == 42
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTracker_StopFlushesFinalSample(t *testing.T) {
	syncService, store := newTestSyncer(t)
	trk := New(syncService, time.Hour)

	trk.Start("user-1", "vid-1", nil)
	require.True(t, trk.Report("user-1", "vid-1", Sample{PositionSeconds: 90, TotalSeconds: 600}))

	// The interval never elapses; only the stop-time flush persists.
	trk.Stop("user-1", "vid-1")

	rec, err := store.GetProgressByUserItem(context.Background(), "user-1", "vid-1")
	require.NoError(t, err)
	assert.Equal(t, 90, rec.WatchedSeconds)
	assert.Equal(t, 90, rec.LastPositionSeconds)
}

func TestTracker_StartReplacesSession(t *testing.T) {
	syncService, _ := newTestSyncer(t)
	trk := New(syncService, time.Hour)
	defer trk.StopAll()

	trk.Start("user-1", "vid-1", nil)
	trk.Start("user-1", "vid-1", nil)
	assert.Equal(t, 1, trk.ActiveCount())

	trk.Start("user-1", "vid-2", nil)
	assert.Equal(t, 2, trk.ActiveCount())
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	syncService, _ := newTestSyncer(t)
	trk := New(syncService, time.Hour)

	trk.Start("user-1", "vid-1", nil)
	trk.Stop("user-1", "vid-1")
	trk.Stop("user-1", "vid-1")
	assert.Equal(t, 0, trk.ActiveCount())
}

func TestTracker_ReportWithoutSession(t *testing.T) {
	syncService, _ := newTestSyncer(t)
	trk := New(syncService, time.Hour)

	assert.False(t, trk.Report("user-1", "vid-1", Sample{PositionSeconds: 10}))
}

func TestTracker_StopAll(t *testing.T) {
	syncService, _ := newTestSyncer(t)
	trk := New(syncService, time.Hour)

	trk.Start("user-1", "vid-1", nil)
	trk.Start("user-1", "vid-2", nil)
	trk.StopAll()
	assert.Equal(t, 0, trk.ActiveCount())
}
