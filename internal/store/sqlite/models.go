package sqlite

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pastorcare/backend/internal/domain"
)

type availabilityRow struct {
	ID        uuid.UUID      `gorm:"type:text;primaryKey"`
	PastorID  string         `gorm:"type:text;not null;index:idx_availability_pastor_day"`
	DayOfWeek int16          `gorm:"not null;index:idx_availability_pastor_day"`
	StartTime datatypes.Time `gorm:"type:time;not null"`
	EndTime   datatypes.Time `gorm:"type:time;not null"`
	IsActive  bool           `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (availabilityRow) TableName() string { return "availability" }

type appointmentRow struct {
	ID              uuid.UUID      `gorm:"type:text;primaryKey"`
	PastorID        string         `gorm:"type:text;not null;index:idx_appointments_pastor"`
	MemberID        string         `gorm:"type:text;not null;index:idx_appointments_member"`
	Subject         string         `gorm:"type:text;not null"`
	Notes           string         `gorm:"type:text"`
	RequestedDate   datatypes.Date `gorm:"type:date;not null;index:idx_appointments_pastor"`
	RequestedTime   datatypes.Time `gorm:"type:time;not null;index:idx_appointments_pastor"`
	Status          string         `gorm:"type:varchar(16);not null;index"`
	Location        string         `gorm:"type:text"`
	MessageToMember string         `gorm:"type:text"`
	CancelReason    string         `gorm:"type:text"`
	CancelledBy     string         `gorm:"type:text"`
	CancelledAt     *time.Time
	ConfirmedAt     *time.Time
	Version         int64          `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (appointmentRow) TableName() string { return "appointments" }

type statusChangeRow struct {
	ID            uuid.UUID `gorm:"type:text;primaryKey"`
	AppointmentID uuid.UUID `gorm:"type:text;not null;index"`
	Event         string    `gorm:"type:varchar(16);not null"`
	FromStatus    string    `gorm:"type:varchar(16)"`
	ToStatus      string    `gorm:"type:varchar(16);not null"`
	ActorID       string    `gorm:"type:text;not null"`
	Reason        string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`

	Appointment *appointmentRow `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE"`
}

func (statusChangeRow) TableName() string { return "appointment_status_changes" }

func clockToTime(c domain.Clock) datatypes.Time {
	return datatypes.NewTime(c.Hour(), c.Minute(), 0, 0)
}

func timeToClock(t datatypes.Time) domain.Clock {
	return domain.Clock(time.Duration(t) / time.Minute)
}

func dateToRow(d domain.Date) datatypes.Date {
	return datatypes.Date(d.In(time.UTC))
}

func dateFromRow(d datatypes.Date) domain.Date {
	return domain.DateOf(time.Time(d))
}

func newID(id uuid.UUID) (uuid.UUID, error) {
	if id != uuid.Nil {
		return id, nil
	}
	return uuid.NewV7()
}

func availabilityToRow(a domain.Availability) availabilityRow {
	return availabilityRow{
		ID:        a.ID,
		PastorID:  a.PastorID,
		DayOfWeek: int16(a.DayOfWeek),
		StartTime: clockToTime(a.StartTime),
		EndTime:   clockToTime(a.EndTime),
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r availabilityRow) toDomain() domain.Availability {
	return domain.Availability{
		ID:        r.ID,
		PastorID:  r.PastorID,
		DayOfWeek: domain.Weekday(r.DayOfWeek),
		StartTime: timeToClock(r.StartTime),
		EndTime:   timeToClock(r.EndTime),
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func appointmentToRow(a domain.Appointment) appointmentRow {
	return appointmentRow{
		ID:              a.ID,
		PastorID:        a.PastorID,
		MemberID:        a.MemberID,
		Subject:         a.Subject,
		Notes:           a.Notes,
		RequestedDate:   dateToRow(a.RequestedDate),
		RequestedTime:   clockToTime(a.RequestedTime),
		Status:          string(a.Status),
		Location:        a.Location,
		MessageToMember: a.MessageToMember,
		CancelReason:    a.CancelReason,
		CancelledBy:     a.CancelledBy,
		CancelledAt:     a.CancelledAt,
		ConfirmedAt:     a.ConfirmedAt,
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (r appointmentRow) toDomain() domain.Appointment {
	a := domain.Appointment{
		ID:              r.ID,
		PastorID:        r.PastorID,
		MemberID:        r.MemberID,
		Subject:         r.Subject,
		Notes:           r.Notes,
		RequestedDate:   dateFromRow(r.RequestedDate),
		RequestedTime:   timeToClock(r.RequestedTime),
		Status:          domain.Status(r.Status),
		Location:        r.Location,
		MessageToMember: r.MessageToMember,
		CancelReason:    r.CancelReason,
		CancelledBy:     r.CancelledBy,
		CancelledAt:     r.CancelledAt,
		ConfirmedAt:     r.ConfirmedAt,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.DeletedAt.Valid {
		a.DeletedAt = r.DeletedAt.Time
	}
	return a
}

func statusChangeToRow(c domain.StatusChange) statusChangeRow {
	return statusChangeRow{
		ID:            c.ID,
		AppointmentID: c.AppointmentID,
		Event:         string(c.Event),
		FromStatus:    string(c.FromStatus),
		ToStatus:      string(c.ToStatus),
		ActorID:       c.ActorID,
		Reason:        c.Reason,
		CreatedAt:     c.CreatedAt,
	}
}

func (r statusChangeRow) toDomain() domain.StatusChange {
	return domain.StatusChange{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		Event:         domain.ChangeEvent(r.Event),
		FromStatus:    domain.Status(r.FromStatus),
		ToStatus:      domain.Status(r.ToStatus),
		ActorID:       r.ActorID,
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
	}
}
