package remote

import (
	"context"

	"github.com/segmentio/encoding/json"
)

// Filter narrows a Fetch to matching rows. Eq entries become column
// equality predicates; Order/Limit/Offset follow the remote's pagination
// conventions.
type Filter struct {
	Eq     map[string]string
	Order  string
	Limit  int
	Offset int
}

// Gateway is the thin interface to the authoritative backend. It never
// retries internally: every failure is surfaced to the caller classified
// by the error taxonomy in this package, and retry policy lives entirely
// in the orchestrator's reconnect-triggered drain.
type Gateway interface {
	// Fetch reads rows from a collection. Each row comes back as raw JSON
	// so callers decode into their own model types.
	Fetch(ctx context.Context, collection string, filter Filter) ([]json.RawMessage, error)

	// Write applies a single upsert or insert. The payload is the full
	// record snapshot; upserts are idempotent, so replaying an identical
	// payload is a no-op relative to final state.
	Write(ctx context.Context, collection, kind string, payload json.RawMessage) error

	// Ping is a cheap reachability check used by the connectivity prober.
	Ping(ctx context.Context) error
}
