package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

type AvailabilityRepo struct {
	db *gorm.DB
}

func NewAvailabilityRepo(db *gorm.DB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

var _ store.AvailabilityRepository = (*AvailabilityRepo)(nil)

func (r *AvailabilityRepo) CreateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	id, err := newID(a.ID)
	if err != nil {
		return domain.Availability{}, err
	}
	now := time.Now().UTC()
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNoOverlap(tx, a); err != nil {
			return err
		}
		row := availabilityToRow(a)
		return tx.Create(&row).Error
	})
	if err != nil {
		return domain.Availability{}, mapAvailabilityError(err)
	}
	return a, nil
}

func (r *AvailabilityRepo) GetAvailability(ctx context.Context, id uuid.UUID) (domain.Availability, error) {
	var row availabilityRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Availability{}, mapAvailabilityError(err)
	}
	return row.toDomain(), nil
}

func (r *AvailabilityRepo) UpdateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	a.UpdatedAt = time.Now().UTC()

	var out domain.Availability
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNoOverlap(tx, a); err != nil {
			return err
		}
		row := availabilityToRow(a)
		res := tx.Model(&availabilityRow{}).
			Where("id = ? AND pastor_id = ?", a.ID, a.PastorID).
			Updates(map[string]any{
				"day_of_week": row.DayOfWeek,
				"start_time":  row.StartTime,
				"end_time":    row.EndTime,
				"is_active":   row.IsActive,
				"updated_at":  row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		var stored availabilityRow
		if err := tx.First(&stored, "id = ?", a.ID).Error; err != nil {
			return err
		}
		out = stored.toDomain()
		return nil
	})
	if err != nil {
		return domain.Availability{}, mapAvailabilityError(err)
	}
	return out, nil
}

func (r *AvailabilityRepo) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&availabilityRow{}, "id = ?", id)
	if res.Error != nil {
		return mapAvailabilityError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AvailabilityRepo) ListAvailability(ctx context.Context, pastorID string, activeOnly bool) ([]domain.Availability, error) {
	q := r.db.WithContext(ctx).Where("pastor_id = ?", pastorID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []availabilityRow
	if err := q.Order("day_of_week ASC, start_time ASC").Find(&rows).Error; err != nil {
		return nil, mapAvailabilityError(err)
	}
	out := make([]domain.Availability, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func ensureNoOverlap(tx *gorm.DB, a domain.Availability) error {
	if !a.IsActive {
		return nil
	}
	var rows []availabilityRow
	err := tx.Where("pastor_id = ? AND day_of_week = ? AND is_active = ?", a.PastorID, int16(a.DayOfWeek), true).
		Find(&rows).Error
	if err != nil {
		return err
	}
	existing := make([]domain.Availability, 0, len(rows))
	for _, row := range rows {
		existing = append(existing, row.toDomain())
	}
	if _, ok := domain.FindOverlap(existing, a); ok {
		return store.ErrOverlap
	}
	return nil
}

// Availability has no unique index besides the primary key, so a duplicate
// key here is not a slot clash.
func mapAvailabilityError(err error) error {
	if errors.Is(err, store.ErrOverlap) || errors.Is(err, store.ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return mapError(err)
}
