package models

import (
	"time"

	"github.com/uptrace/bun"
)

// NoteRecord is a user's free-text note for a catalog item. Notes are
// upserted wholesale; the last local write wins with no field-level merge.
type NoteRecord struct {
	bun.BaseModel `bun:"table:note_records,alias:nr"`

	ID            string    `bun:",pk" json:"id"`
	UserID        string    `bun:",notnull" json:"user_id"`
	CatalogItemID string    `bun:",notnull" json:"catalog_item_id"`
	Content       string    `bun:",notnull" json:"content"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
