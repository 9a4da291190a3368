package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nihonma/manabi/pkg/connectivity"
	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/localstore"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/nihonma/manabi/pkg/progress"
	"github.com/nihonma/manabi/pkg/remote"
	"github.com/nihonma/manabi/pkg/syncqueue"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// Outcome reports where a write landed. Every mutating call commits
// locally first; the outcome only describes the remote side.
type Outcome string

const (
	// OutcomeSynced means the remote acknowledged the write immediately.
	OutcomeSynced Outcome = "synced"
	// OutcomeQueued means the write is locally durable and waiting in the
	// sync queue for the next drain.
	OutcomeQueued Outcome = "queued"
)

// Service coordinates the local store, the sync queue, the remote gateway
// and the connectivity monitor. Every mutating call follows the same
// two-phase shape: phase 1 persists to the local store (synchronous,
// always succeeds or the operation fails hard), phase 2 pushes to the
// remote (best-effort, degrading to the queue on connectivity failures).
type Service struct {
	store   *localstore.Service
	queue   *syncqueue.Service
	gateway remote.Gateway
	monitor *connectivity.Monitor
	log     logger.Logger

	// drain is globally sequential to preserve causal order across
	// records, not just per record.
	drainMu     sync.Mutex
	unsubscribe func()
}

func NewService(store *localstore.Service, queue *syncqueue.Service, gateway remote.Gateway, monitor *connectivity.Monitor) *Service {
	return &Service{
		store:   store,
		queue:   queue,
		gateway: gateway,
		monitor: monitor,
		log:     logger.New(),
	}
}

// Start hooks the reconnect signal up to the queue drain. Stop undoes it.
func (svc *Service) Start() {
	svc.unsubscribe = svc.monitor.OnReconnect(func() {
		if _, err := svc.Flush(context.Background()); err != nil {
			svc.log.Err(err).Warn("reconnect drain halted")
		}
	})
}

func (svc *Service) Stop() {
	if svc.unsubscribe != nil {
		svc.unsubscribe()
		svc.unsubscribe = nil
	}
}

// SaveProgress merges a playback observation and commits it. The returned
// record reflects the local store; the outcome says whether the remote has
// it yet. A conflict or validation rejection from the remote is returned
// as an error, but the record is still locally saved.
func (svc *Service) SaveProgress(ctx context.Context, obs progress.Observation) (*models.ProgressRecord, Outcome, error) {
	if obs.Now.IsZero() {
		obs.Now = time.Now()
	}

	prev, err := svc.store.GetProgressByUserItem(ctx, obs.UserID, obs.CatalogItemID)
	if err != nil && !errors.Is(err, errcodes.NotFound("Progress record")) {
		return nil, "", err
	}

	next := progress.Reconcile(prev, obs)

	if err := svc.store.PutProgress(ctx, next); err != nil {
		return nil, "", err
	}

	outcome, err := svc.pushRemote(ctx, models.CollectionProgressRecords, models.OperationKindUpsert, next)
	return next, outcome, err
}

// ToggleCompleted flips the completion flag for a (user, item) pair. This
// is the explicit user action that bypasses the threshold rule.
func (svc *Service) ToggleCompleted(ctx context.Context, userID, catalogItemID string) (*models.ProgressRecord, Outcome, error) {
	prev, err := svc.store.GetProgressByUserItem(ctx, userID, catalogItemID)
	if err != nil && !errors.Is(err, errcodes.NotFound("Progress record")) {
		return nil, "", err
	}

	next := progress.Toggle(prev, userID, catalogItemID, time.Now())

	if err := svc.store.PutProgress(ctx, next); err != nil {
		return nil, "", err
	}

	outcome, err := svc.pushRemote(ctx, models.CollectionProgressRecords, models.OperationKindUpsert, next)
	return next, outcome, err
}

// SaveNote upserts a note wholesale. Last local write wins; there is no
// field-level merge.
func (svc *Service) SaveNote(ctx context.Context, userID, catalogItemID, content string) (*models.NoteRecord, Outcome, error) {
	now := time.Now()

	note := &models.NoteRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		CatalogItemID: catalogItemID,
		Content:       content,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	prev, err := svc.store.GetNoteByUserItem(ctx, userID, catalogItemID)
	if err != nil && !errors.Is(err, errcodes.NotFound("Note")) {
		return nil, "", err
	}
	if prev != nil {
		note.ID = prev.ID
		note.CreatedAt = prev.CreatedAt
	}

	if err := svc.store.PutNote(ctx, note); err != nil {
		return nil, "", err
	}

	outcome, err := svc.pushRemote(ctx, models.CollectionNoteRecords, models.OperationKindUpsert, note)
	return note, outcome, err
}

// pushRemote is phase 2 of every write. Connectivity failures degrade to
// the queue and report OutcomeQueued; constraint and validation rejections
// are surfaced since queueing them would just replay the same rejection.
func (svc *Service) pushRemote(ctx context.Context, collection, kind string, payload interface{}) (Outcome, error) {
	if !svc.monitor.Online() {
		if _, err := svc.queue.Enqueue(ctx, collection, kind, payload); err != nil {
			return "", err
		}
		return OutcomeQueued, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", errors.WithStack(err)
	}

	err = svc.gateway.Write(ctx, collection, kind, json.RawMessage(raw))
	if err == nil {
		return OutcomeSynced, nil
	}

	if remote.IsRetryable(err) {
		if _, qerr := svc.queue.Enqueue(ctx, collection, kind, payload); qerr != nil {
			return "", qerr
		}
		return OutcomeQueued, nil
	}

	return "", err
}

// Flush drains the sync queue against the remote gateway, oldest first,
// halting at the first failure. Safe to call concurrently; drains never
// interleave.
func (svc *Service) Flush(ctx context.Context) (int, error) {
	svc.drainMu.Lock()
	defer svc.drainMu.Unlock()

	applied, err := svc.queue.DrainInOrder(ctx, func(ctx context.Context, op *models.PendingOperation) error {
		return svc.gateway.Write(ctx, op.Collection, op.Kind, op.RawPayload())
	})
	if applied > 0 {
		svc.log.Info("drained pending operations", logger.Data{"applied": applied})
	}
	return applied, err
}

func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	return svc.queue.Count(ctx)
}

func (svc *Service) Online() bool {
	return svc.monitor.Online()
}

// ListCatalog reads the catalog remote-first: a successful fetch refreshes
// the local cache and is returned; any failure falls back silently to the
// cache, with the degraded flag set so the UI can surface it.
func (svc *Service) ListCatalog(ctx context.Context, opts localstore.ListCatalogItemsOptions) ([]*models.CatalogItem, bool, error) {
	filter := remote.Filter{Order: "playlist_position.asc"}
	if opts.Limit != nil {
		filter.Limit = *opts.Limit
	}
	if opts.Offset != nil {
		filter.Offset = *opts.Offset
	}

	rows, err := svc.gateway.Fetch(ctx, models.CollectionCatalogItems, filter)
	if err != nil {
		items, lerr := svc.store.ListCatalogItems(ctx, opts)
		if lerr != nil {
			return nil, true, lerr
		}
		return items, true, nil
	}

	items := make([]*models.CatalogItem, 0, len(rows))
	for _, row := range rows {
		item := &models.CatalogItem{}
		if err := json.Unmarshal(row, item); err != nil {
			return nil, false, errors.Wrap(err, "failed to decode catalog item")
		}
		items = append(items, item)
	}

	if err := svc.store.BulkPutCatalogItems(ctx, items); err != nil {
		return nil, false, err
	}

	return items, false, nil
}

// ListProgress reads a user's progress remote-first with the same silent
// cache fallback as ListCatalog.
func (svc *Service) ListProgress(ctx context.Context, userID string) ([]*models.ProgressRecord, bool, error) {
	rows, err := svc.gateway.Fetch(ctx, models.CollectionProgressRecords, remote.Filter{
		Eq: map[string]string{"user_id": userID},
	})
	if err != nil {
		recs, lerr := svc.store.ListProgressByUser(ctx, userID)
		if lerr != nil {
			return nil, true, lerr
		}
		return recs, true, nil
	}

	recs := make([]*models.ProgressRecord, 0, len(rows))
	for _, row := range rows {
		rec := &models.ProgressRecord{}
		if err := json.Unmarshal(row, rec); err != nil {
			return nil, false, errors.Wrap(err, "failed to decode progress record")
		}
		recs = append(recs, rec)
	}

	if err := svc.store.BulkPutProgress(ctx, recs); err != nil {
		return nil, false, err
	}

	return recs, false, nil
}

// ListNotes reads a user's notes remote-first with the same silent cache
// fallback as ListCatalog.
func (svc *Service) ListNotes(ctx context.Context, userID string) ([]*models.NoteRecord, bool, error) {
	rows, err := svc.gateway.Fetch(ctx, models.CollectionNoteRecords, remote.Filter{
		Eq: map[string]string{"user_id": userID},
	})
	if err != nil {
		notes, lerr := svc.store.ListNotesByUser(ctx, userID)
		if lerr != nil {
			return nil, true, lerr
		}
		return notes, true, nil
	}

	notes := make([]*models.NoteRecord, 0, len(rows))
	for _, row := range rows {
		note := &models.NoteRecord{}
		if err := json.Unmarshal(row, note); err != nil {
			return nil, false, errors.Wrap(err, "failed to decode note")
		}
		notes = append(notes, note)
	}

	if err := svc.store.BulkPutNotes(ctx, notes); err != nil {
		return nil, false, err
	}

	return notes, false, nil
}

// GetCatalogItem returns a single item from the catalog cache. The cache is
// filled by ListCatalog; an item never fetched is simply not found.
func (svc *Service) GetCatalogItem(ctx context.Context, id string) (*models.CatalogItem, error) {
	return svc.store.GetCatalogItem(ctx, id)
}

// GetNote returns the locally cached note for a (user, item) pair.
func (svc *Service) GetNote(ctx context.Context, userID, catalogItemID string) (*models.NoteRecord, error) {
	return svc.store.GetNoteByUserItem(ctx, userID, catalogItemID)
}

// GetProgress returns the locally cached progress for a (user, item) pair.
func (svc *Service) GetProgress(ctx context.Context, userID, catalogItemID string) (*models.ProgressRecord, error) {
	return svc.store.GetProgressByUserItem(ctx, userID, catalogItemID)
}
