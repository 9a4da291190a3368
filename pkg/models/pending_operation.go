package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	OperationKindUpsert = "upsert"
	OperationKindInsert = "insert"
)

// Collection names shared by the local store, the sync queue, and the
// remote gateway. They match the remote table names.
const (
	CollectionCatalogItems    = "catalog_items"
	CollectionProgressRecords = "progress_records"
	CollectionNoteRecords     = "note_records"
)

// PendingOperation is a write that couldn't be applied remotely at the time
// it happened. It carries a full payload snapshot from enqueue time and is
// deleted only once the remote acknowledges it.
type PendingOperation struct {
	bun.BaseModel `bun:"table:pending_operations,alias:po"`

	ID         int64     `bun:",pk,autoincrement" json:"id"`
	Collection string    `bun:",notnull" json:"collection"`
	Kind       string    `bun:",notnull" json:"kind"`
	Payload    string    `bun:",notnull" json:"payload"`
	EnqueuedAt time.Time `bun:",notnull" json:"enqueued_at"`
}

// SetPayload stores the JSON snapshot of the record being synced.
func (op *PendingOperation) SetPayload(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	op.Payload = string(data)
	return nil
}

// RawPayload returns the snapshot for handing to the remote gateway.
func (op *PendingOperation) RawPayload() json.RawMessage {
	return json.RawMessage(op.Payload)
}
