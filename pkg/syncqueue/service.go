package syncqueue

import (
	"context"
	"time"

	"github.com/nihonma/manabi/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Service owns the append-only pending-operation log. Operations land here
// whenever a remote write can't be confirmed, and leave only when a drain
// applies them successfully. The log survives process restarts with the
// rest of the local store.
type Service struct {
	db  *bun.DB
	log logger.Logger
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db, log: logger.New()}
}

// Enqueue appends a full payload snapshot for later replay. Nothing is
// deduplicated: a later snapshot for the same record simply drains after
// the earlier one and wins, since remote upserts are idempotent.
func (svc *Service) Enqueue(ctx context.Context, collection, kind string, payload interface{}) (*models.PendingOperation, error) {
	op := &models.PendingOperation{
		Collection: collection,
		Kind:       kind,
		EnqueuedAt: time.Now(),
	}
	if err := op.SetPayload(payload); err != nil {
		return nil, err
	}

	_, err := svc.db.
		NewInsert().
		Model(op).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	svc.log.Info("queued pending operation", logger.Data{
		"id":         op.ID,
		"collection": op.Collection,
		"kind":       op.Kind,
	})

	return op, nil
}

// ApplyFunc applies one pending operation against the remote. A nil return
// acknowledges the operation and removes it from the queue.
type ApplyFunc func(ctx context.Context, op *models.PendingOperation) error

// DrainInOrder replays queued operations oldest-first. It stops at the
// first failure and leaves that operation and everything behind it queued,
// preserving FIFO application order: applying operation N+1 ahead of a
// failed operation N could leave the remote in an order-dependent-wrong
// state. Returns how many operations were applied and the halting error,
// if any.
func (svc *Service) DrainInOrder(ctx context.Context, apply ApplyFunc) (int, error) {
	ops, err := svc.List(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, op := range ops {
		if err := apply(ctx, op); err != nil {
			svc.log.Err(err).Warn("drain halted")
			return applied, err
		}

		_, err := svc.db.
			NewDelete().
			Model((*models.PendingOperation)(nil)).
			Where("po.id = ?", op.ID).
			Exec(ctx)
		if err != nil {
			return applied, errors.WithStack(err)
		}
		applied++
	}

	return applied, nil
}

// List returns all queued operations in drain order.
func (svc *Service) List(ctx context.Context) ([]*models.PendingOperation, error) {
	ops := []*models.PendingOperation{}

	err := svc.db.
		NewSelect().
		Model(&ops).
		Order("po.enqueued_at ASC", "po.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ops, nil
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.PendingOperation)(nil)).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}
