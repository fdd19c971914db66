package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

type AvailabilityRepo struct {
	db *bun.DB
}

func NewAvailabilityRepo(db *bun.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

var _ store.AvailabilityRepository = (*AvailabilityRepo)(nil)

// inPastorTransaction serializes availability writes of one pastor. The
// exclusion constraint is the final arbiter; the lock keeps the in-tx
// overlap check and the write consistent so callers get a clean error.
func (r *AvailabilityRepo) inPastorTransaction(ctx context.Context, pastorID string, fn func(ctx context.Context, tx bun.Tx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "availability:"+pastorID).Exec(ctx); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
	return mapError(err)
}

func (r *AvailabilityRepo) CreateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	m := a
	err := r.inPastorTransaction(ctx, a.PastorID, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureNoOverlap(ctx, tx, m); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&m).Exec(ctx)
		return err
	})
	if err != nil {
		return domain.Availability{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) GetAvailability(ctx context.Context, id uuid.UUID) (domain.Availability, error) {
	var out domain.Availability
	err := r.db.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Availability{}, mapError(err)
	}
	return out, nil
}

func (r *AvailabilityRepo) UpdateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	m := a
	err := r.inPastorTransaction(ctx, a.PastorID, func(ctx context.Context, tx bun.Tx) error {
		if err := ensureNoOverlap(ctx, tx, m); err != nil {
			return err
		}
		res, err := tx.NewUpdate().
			Model(&m).
			Column("day_of_week", "start_time", "end_time", "is_active", "updated_at").
			WherePK().
			Where("pastor_id = ?", m.PastorID).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Availability{}, err
	}
	return m, nil
}

func (r *AvailabilityRepo) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Availability)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AvailabilityRepo) ListAvailability(ctx context.Context, pastorID string, activeOnly bool) ([]domain.Availability, error) {
	var rows []domain.Availability
	q := r.db.NewSelect().
		Model(&rows).
		Where("pastor_id = ?", pastorID)
	if activeOnly {
		q = q.Where("is_active")
	}
	err := q.OrderExpr("day_of_week ASC, start_time ASC").Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func ensureNoOverlap(ctx context.Context, tx bun.Tx, a domain.Availability) error {
	if !a.IsActive {
		return nil
	}
	var existing []domain.Availability
	err := tx.NewSelect().
		Model(&existing).
		Where("pastor_id = ?", a.PastorID).
		Where("day_of_week = ?", a.DayOfWeek).
		Where("is_active").
		Scan(ctx)
	if err != nil {
		return err
	}
	if _, ok := domain.FindOverlap(existing, a); ok {
		return store.ErrOverlap
	}
	return nil
}
