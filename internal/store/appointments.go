package store

import (
	"context"

	"github.com/google/uuid"

	"pastorcare/backend/internal/domain"
)

type AppointmentFilter struct {
	PastorID string
	MemberID string
	// Involving matches rows where the id is either the pastor or the member.
	Involving string
	Statuses  []domain.Status
	// FromDate keeps rows whose requested date is on or after it.
	FromDate domain.Date
}

func ByPastor(pastorID string, statuses ...domain.Status) AppointmentFilter {
	return AppointmentFilter{PastorID: pastorID, Statuses: statuses}
}

// AppointmentRepository is persistence only; policy lives in the booking
// service.
//
// CreateAppointment returns ErrSlotTaken when another PENDING or CONFIRMED
// appointment holds the same (pastor, date, time); the check is made by the
// database together with the insert. Re-inserting an existing ID returns the
// stored row when it describes the same request and ErrIdempotencyConflict
// otherwise.
//
// UpdateAppointment is a compare-and-swap on appt.Version. On success the
// stored version is incremented and change, when non-nil, is appended to
// the history in the same transaction. A lost race yields ErrStaleVersion.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// ListAppointments orders by requested date, requested time, then id.
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment, change *domain.StatusChange) (domain.Appointment, error)
	// DeleteAppointment hides the row from all reads and frees its slot.
	// The history is kept.
	DeleteAppointment(ctx context.Context, id uuid.UUID, change domain.StatusChange) error
	ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]domain.StatusChange, error)
}
