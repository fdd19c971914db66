package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

var _ store.AppointmentRepository = (*AppointmentRepo)(nil)

type appointmentTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) inTransaction(ctx context.Context, fn func(ctx context.Context, tx appointmentTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, appointmentTx{tx: tx})
	})
	return mapError(err)
}

func (r *AppointmentRepo) CreateAppointment(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inTransaction(ctx, func(ctx context.Context, tx appointmentTx) error {
		a, created, err := tx.insertAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		if !created {
			return nil
		}
		change.AppointmentID = a.ID
		change.ToStatus = a.Status
		return tx.insertChange(ctx, change)
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return out, nil
}

func (r *AppointmentRepo) ListAppointments(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)
	if f.PastorID != "" {
		q = q.Where("pastor_id = ?", f.PastorID)
	}
	if f.MemberID != "" {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.Involving != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("pastor_id = ?", f.Involving).WhereOr("member_id = ?", f.Involving)
		})
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(f.Statuses))
	}
	if !f.FromDate.IsZero() {
		q = q.Where("requested_date >= ?", f.FromDate)
	}
	err := q.OrderExpr("requested_date ASC, requested_time ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *AppointmentRepo) UpdateAppointment(ctx context.Context, appt domain.Appointment, change *domain.StatusChange) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.inTransaction(ctx, func(ctx context.Context, tx appointmentTx) error {
		a, err := tx.compareAndSwap(ctx, appt)
		if err != nil {
			return err
		}
		out = a
		if change == nil {
			return nil
		}
		c := *change
		c.AppointmentID = a.ID
		return tx.insertChange(ctx, c)
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) DeleteAppointment(ctx context.Context, id uuid.UUID, change domain.StatusChange) error {
	return r.inTransaction(ctx, func(ctx context.Context, tx appointmentTx) error {
		var current domain.Appointment
		err := tx.tx.NewSelect().
			Model(&current).
			Where("id = ?", id).
			For("UPDATE").
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}

		// Soft delete: bun turns this into an UPDATE of deleted_at.
		if _, err := tx.tx.NewDelete().Model(&current).WherePK().Exec(ctx); err != nil {
			return err
		}

		change.AppointmentID = id
		change.FromStatus = current.Status
		change.ToStatus = current.Status
		return tx.insertChange(ctx, change)
	})
}

func (r *AppointmentRepo) ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]domain.StatusChange, error) {
	var rows []domain.StatusChange
	err := r.db.NewSelect().
		Model(&rows).
		Where("appointment_id = ?", appointmentID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// insertAppointment reports created=false when the ID already existed and
// the stored row describes the same request.
func (t appointmentTx) insertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, bool, error) {
	m := appt
	res, err := t.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, false, err
	}
	if affected == 1 {
		return m, true, nil
	}

	var existing domain.Appointment
	err = t.tx.NewSelect().
		Model(&existing).
		WhereAllWithDeleted().
		Where("id = ?", m.ID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, false, err
	}
	if !existing.DeletedAt.IsZero() || !existing.SameRequest(appt) {
		return domain.Appointment{}, false, store.ErrIdempotencyConflict
	}
	return existing, false, nil
}

func (t appointmentTx) compareAndSwap(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	expected := appt.Version
	m := appt
	m.Version = expected + 1

	res, err := t.tx.NewUpdate().
		Model(&m).
		Column(
			"subject", "notes", "status", "location", "message_to_member",
			"cancel_reason", "cancelled_by", "cancelled_at", "confirmed_at",
			"version", "updated_at",
		).
		WherePK().
		Where("version = ?", expected).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 1 {
		return m, nil
	}

	exists, err := t.tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", appt.ID).
		Exists(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !exists {
		return domain.Appointment{}, store.ErrNotFound
	}
	return domain.Appointment{}, store.ErrStaleVersion
}

func (t appointmentTx) insertChange(ctx context.Context, c domain.StatusChange) error {
	if c.AppointmentID == uuid.Nil {
		return errors.New("status change without appointment id")
	}
	_, err := t.tx.NewInsert().Model(&c).Exec(ctx)
	return err
}
