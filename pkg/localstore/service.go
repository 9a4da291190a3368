package localstore

import (
	"context"
	"database/sql"

	"github.com/nihonma/manabi/pkg/errcodes"
	"github.com/nihonma/manabi/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Service is the on-device cache. It mirrors the three remote collections
// and is the source of truth for every read while the remote is
// unreachable. It never makes network calls; failures here are fatal to the
// operation since the write-through guarantee can't be honored without it.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

type ListCatalogItemsOptions struct {
	Limit  *int
	Offset *int
}

func (svc *Service) GetCatalogItem(ctx context.Context, id string) (*models.CatalogItem, error) {
	item := &models.CatalogItem{}

	err := svc.db.
		NewSelect().
		Model(item).
		Where("ci.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Catalog item")
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) ListCatalogItems(ctx context.Context, opts ListCatalogItemsOptions) ([]*models.CatalogItem, error) {
	items := []*models.CatalogItem{}

	q := svc.db.
		NewSelect().
		Model(&items).
		Order("ci.playlist_position ASC", "ci.published_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	return items, nil
}

// BulkPutCatalogItems fills the catalog cache after a successful remote
// fetch. Catalog rows are never written locally through any other path.
func (svc *Service) BulkPutCatalogItems(ctx context.Context, items []*models.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}

	_, err := svc.db.
		NewInsert().
		Model(&items).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("description = EXCLUDED.description").
		Set("thumbnail_url = EXCLUDED.thumbnail_url").
		Set("duration_seconds = EXCLUDED.duration_seconds").
		Set("published_at = EXCLUDED.published_at").
		Set("playlist_position = EXCLUDED.playlist_position").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

// GetProgressByUserItem looks up the one record for a (user, catalog item)
// pair. Returns errcodes.NotFound when the user hasn't touched the item.
func (svc *Service) GetProgressByUserItem(ctx context.Context, userID, catalogItemID string) (*models.ProgressRecord, error) {
	rec := &models.ProgressRecord{}

	err := svc.db.
		NewSelect().
		Model(rec).
		Where("pr.user_id = ?", userID).
		Where("pr.catalog_item_id = ?", catalogItemID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Progress record")
		}
		return nil, errors.WithStack(err)
	}

	return rec, nil
}

func (svc *Service) PutProgress(ctx context.Context, rec *models.ProgressRecord) error {
	_, err := svc.db.
		NewInsert().
		Model(rec).
		On("CONFLICT (user_id, catalog_item_id) DO UPDATE").
		Set("watched_seconds = EXCLUDED.watched_seconds").
		Set("total_seconds = EXCLUDED.total_seconds").
		Set("completed = EXCLUDED.completed").
		Set("completed_at = EXCLUDED.completed_at").
		Set("last_position_seconds = EXCLUDED.last_position_seconds").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) BulkPutProgress(ctx context.Context, recs []*models.ProgressRecord) error {
	if len(recs) == 0 {
		return nil
	}

	_, err := svc.db.
		NewInsert().
		Model(&recs).
		On("CONFLICT (user_id, catalog_item_id) DO UPDATE").
		Set("watched_seconds = EXCLUDED.watched_seconds").
		Set("total_seconds = EXCLUDED.total_seconds").
		Set("completed = EXCLUDED.completed").
		Set("completed_at = EXCLUDED.completed_at").
		Set("last_position_seconds = EXCLUDED.last_position_seconds").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListProgressByUser(ctx context.Context, userID string) ([]*models.ProgressRecord, error) {
	recs := []*models.ProgressRecord{}

	err := svc.db.
		NewSelect().
		Model(&recs).
		Where("pr.user_id = ?", userID).
		Order("pr.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return recs, nil
}

func (svc *Service) GetNoteByUserItem(ctx context.Context, userID, catalogItemID string) (*models.NoteRecord, error) {
	note := &models.NoteRecord{}

	err := svc.db.
		NewSelect().
		Model(note).
		Where("nr.user_id = ?", userID).
		Where("nr.catalog_item_id = ?", catalogItemID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Note")
		}
		return nil, errors.WithStack(err)
	}

	return note, nil
}

func (svc *Service) PutNote(ctx context.Context, note *models.NoteRecord) error {
	_, err := svc.db.
		NewInsert().
		Model(note).
		On("CONFLICT (user_id, catalog_item_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) BulkPutNotes(ctx context.Context, notes []*models.NoteRecord) error {
	if len(notes) == 0 {
		return nil
	}

	_, err := svc.db.
		NewInsert().
		Model(&notes).
		On("CONFLICT (user_id, catalog_item_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) ListNotesByUser(ctx context.Context, userID string) ([]*models.NoteRecord, error) {
	notes := []*models.NoteRecord{}

	err := svc.db.
		NewSelect().
		Model(&notes).
		Where("nr.user_id = ?", userID).
		Order("nr.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return notes, nil
}
