package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProgressRecord tracks one user's watch progress for one catalog item.
// There is at most one row per (user_id, catalog_item_id) pair.
//
// WatchedSeconds never decreases across successive merges, and Completed
// only transitions false→true automatically; reverting it requires the
// explicit completion toggle.
type ProgressRecord struct {
	bun.BaseModel `bun:"table:progress_records,alias:pr"`

	ID                  string     `bun:",pk" json:"id"`
	UserID              string     `bun:",notnull" json:"user_id"`
	CatalogItemID       string     `bun:",notnull" json:"catalog_item_id"`
	WatchedSeconds      int        `bun:",notnull" json:"watched_seconds"`
	TotalSeconds        *int       `json:"total_seconds"`
	Completed           bool       `bun:",notnull" json:"completed"`
	CompletedAt         *time.Time `json:"completed_at"`
	LastPositionSeconds int        `bun:",notnull" json:"last_position_seconds"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Percent returns the watched percentage rounded to the nearest integer, or
// 0 when the total duration isn't known yet.
func (pr *ProgressRecord) Percent() int {
	if pr.TotalSeconds == nil || *pr.TotalSeconds <= 0 {
		return 0
	}
	pct := float64(pr.WatchedSeconds) / float64(*pr.TotalSeconds) * 100
	return int(pct + 0.5)
}
