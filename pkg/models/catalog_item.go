package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CatalogItem is a video in the fixed learning catalog. The backend owns
// these rows; locally they only exist as a read-through cache filled on a
// successful remote fetch.
type CatalogItem struct {
	bun.BaseModel `bun:"table:catalog_items,alias:ci"`

	ID               string     `bun:",pk" json:"id"`
	Title            string     `bun:",notnull" json:"title"`
	Description      *string    `json:"description"`
	ThumbnailURL     *string    `json:"thumbnail_url"`
	DurationSeconds  *int       `json:"duration_seconds"`
	PublishedAt      *time.Time `json:"published_at"`
	PlaylistPosition *int       `json:"playlist_position"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
