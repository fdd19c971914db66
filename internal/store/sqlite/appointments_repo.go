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

type AppointmentRepo struct {
	db *gorm.DB
}

func NewAppointmentRepo(db *gorm.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

var _ store.AppointmentRepository = (*AppointmentRepo)(nil)

func (r *AppointmentRepo) CreateAppointment(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appt.ID != uuid.Nil {
			var existing appointmentRow
			err := tx.Unscoped().Where("id = ?", appt.ID).Limit(1).Find(&existing).Error
			if err != nil {
				return err
			}
			if existing.ID != uuid.Nil {
				prior := existing.toDomain()
				if !prior.DeletedAt.IsZero() || !prior.SameRequest(appt) {
					return store.ErrIdempotencyConflict
				}
				out = prior
				return nil
			}
		}

		id, err := newID(appt.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		appt.ID = id
		appt.Version = 1
		appt.CreatedAt = now
		appt.UpdatedAt = now

		row := appointmentToRow(appt)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		change.AppointmentID = appt.ID
		change.ToStatus = appt.Status
		if err := insertChange(tx, change); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, mapAppointmentError(err)
	}
	return out, nil
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var row appointmentRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return domain.Appointment{}, mapAppointmentError(err)
	}
	return row.toDomain(), nil
}

func (r *AppointmentRepo) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	q := r.db.WithContext(ctx).Model(&appointmentRow{})
	if f.PastorID != "" {
		q = q.Where("pastor_id = ?", f.PastorID)
	}
	if f.MemberID != "" {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.Involving != "" {
		q = q.Where("(pastor_id = ? OR member_id = ?)", f.Involving, f.Involving)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if !f.FromDate.IsZero() {
		q = q.Where("requested_date >= ?", dateToRow(f.FromDate))
	}

	var rows []appointmentRow
	if err := q.Order("requested_date ASC, requested_time ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, mapAppointmentError(err)
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *AppointmentRepo) UpdateAppointment(ctx context.Context, appt domain.Appointment, change *domain.StatusChange) (domain.Appointment, error) {
	expected := appt.Version
	appt.Version = expected + 1
	appt.UpdatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := appointmentToRow(appt)
		res := tx.Model(&appointmentRow{}).
			Where("id = ? AND version = ?", appt.ID, expected).
			Updates(map[string]any{
				"subject":           row.Subject,
				"notes":             row.Notes,
				"status":            row.Status,
				"location":          row.Location,
				"message_to_member": row.MessageToMember,
				"cancel_reason":     row.CancelReason,
				"cancelled_by":      row.CancelledBy,
				"cancelled_at":      row.CancelledAt,
				"confirmed_at":      row.ConfirmedAt,
				"version":           row.Version,
				"updated_at":        row.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&appointmentRow{}).Where("id = ?", appt.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return store.ErrNotFound
			}
			return store.ErrStaleVersion
		}
		if change == nil {
			return nil
		}
		c := *change
		c.AppointmentID = appt.ID
		return insertChange(tx, c)
	})
	if err != nil {
		return domain.Appointment{}, mapAppointmentError(err)
	}
	return appt, nil
}

func (r *AppointmentRepo) DeleteAppointment(ctx context.Context, id uuid.UUID, change domain.StatusChange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current appointmentRow
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&current).Error; err != nil {
			return err
		}
		change.AppointmentID = id
		change.FromStatus = domain.Status(current.Status)
		change.ToStatus = domain.Status(current.Status)
		return insertChange(tx, change)
	})
	return mapAppointmentError(err)
}

func (r *AppointmentRepo) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]domain.StatusChange, error) {
	var rows []statusChangeRow
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, mapAppointmentError(err)
	}
	out := make([]domain.StatusChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func insertChange(tx *gorm.DB, c domain.StatusChange) error {
	id, err := newID(c.ID)
	if err != nil {
		return err
	}
	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	row := statusChangeToRow(c)
	return tx.Omit("Appointment").Create(&row).Error
}

func mapAppointmentError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrStaleVersion),
		errors.Is(err, store.ErrIdempotencyConflict):
		return err
	}
	return mapError(err)
}
