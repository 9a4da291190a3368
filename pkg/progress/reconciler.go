package progress

import (
	"time"

	"github.com/google/uuid"
	"github.com/nihonma/manabi/pkg/models"
)

// CompletionThreshold is the fraction of total duration watched at which a
// record is automatically marked complete.
const CompletionThreshold = 0.9

// Observation is one sample of playback state, as reported by the player.
type Observation struct {
	UserID              string
	CatalogItemID       string
	WatchedSeconds      int
	TotalSeconds        int
	LastPositionSeconds int
	Now                 time.Time
}

// Reconcile merges a playback observation into the previously persisted
// record and returns the next record to persist. It is a pure function:
// neither argument is mutated.
//
// The merge guarantees:
//   - watched time never regresses, even if the observation reports less
//     than what's already recorded
//   - completion is one-way: once true it stays true here (only the
//     explicit Toggle path can revert it)
//   - completed_at is set exactly once, at the transition
//   - the resume cursor is always overwritten; it's a cursor, not an
//     accumulator
func Reconcile(prev *models.ProgressRecord, obs Observation) *models.ProgressRecord {
	next := &models.ProgressRecord{
		UserID:              obs.UserID,
		CatalogItemID:       obs.CatalogItemID,
		LastPositionSeconds: obs.LastPositionSeconds,
		UpdatedAt:           obs.Now,
	}

	if prev != nil {
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
		next.WatchedSeconds = prev.WatchedSeconds
		next.Completed = prev.Completed
		next.CompletedAt = prev.CompletedAt
		next.TotalSeconds = prev.TotalSeconds
	} else {
		next.ID = uuid.NewString()
		next.CreatedAt = obs.Now
	}

	if obs.WatchedSeconds > next.WatchedSeconds {
		next.WatchedSeconds = obs.WatchedSeconds
	}

	if obs.TotalSeconds > 0 {
		total := obs.TotalSeconds
		next.TotalSeconds = &total
	}

	if !next.Completed && next.TotalSeconds != nil && *next.TotalSeconds > 0 {
		ratio := float64(next.WatchedSeconds) / float64(*next.TotalSeconds)
		if ratio >= CompletionThreshold {
			next.Completed = true
			completedAt := obs.Now
			next.CompletedAt = &completedAt
		}
	}

	return next
}

// Toggle flips the completed flag unconditionally. This is a distinct user
// action, not a reconciliation of an observation: it bypasses the
// threshold rule entirely and is the only way completed goes true→false.
func Toggle(prev *models.ProgressRecord, userID, catalogItemID string, now time.Time) *models.ProgressRecord {
	next := &models.ProgressRecord{
		UserID:        userID,
		CatalogItemID: catalogItemID,
		UpdatedAt:     now,
	}

	if prev != nil {
		next.ID = prev.ID
		next.CreatedAt = prev.CreatedAt
		next.WatchedSeconds = prev.WatchedSeconds
		next.TotalSeconds = prev.TotalSeconds
		next.LastPositionSeconds = prev.LastPositionSeconds
		next.Completed = !prev.Completed
	} else {
		next.ID = uuid.NewString()
		next.CreatedAt = now
		next.Completed = true
	}

	if next.Completed {
		completedAt := now
		next.CompletedAt = &completedAt
	} else {
		next.CompletedAt = nil
	}

	return next
}
