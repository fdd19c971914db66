package domain

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// Active statuses hold their slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	default:
		return false
	}
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid"`
	PastorID        string     `bun:"pastor_id,notnull"`
	MemberID        string     `bun:"member_id,notnull"`
	Subject         string     `bun:"subject,notnull"`
	Notes           string     `bun:"notes,nullzero"`
	RequestedDate   Date       `bun:"requested_date,type:date,notnull"`
	RequestedTime   Clock      `bun:"requested_time,type:time,notnull"`
	Status          Status     `bun:"status,notnull"`
	Location        string     `bun:"location,nullzero"`
	MessageToMember string     `bun:"message_to_member,nullzero"`
	CancelReason    string     `bun:"cancel_reason,nullzero"`
	CancelledBy     string     `bun:"cancelled_by,nullzero"`
	CancelledAt     *time.Time `bun:"cancelled_at"`
	ConfirmedAt     *time.Time `bun:"confirmed_at"`
	Version         int64      `bun:"version,notnull"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull"`
	DeletedAt       time.Time  `bun:"deleted_at,soft_delete,nullzero"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Version == 0 {
			a.Version = 1
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Instant is the absolute start of the meeting in the operating zone.
func (a Appointment) Instant(loc *time.Location) time.Time {
	return a.RequestedDate.At(a.RequestedTime, loc)
}

// SameRequest reports whether two appointments describe the same booking
// request. Used to tell an idempotent retry from a reused key.
func (a Appointment) SameRequest(o Appointment) bool {
	return a.PastorID == o.PastorID &&
		a.MemberID == o.MemberID &&
		a.Subject == o.Subject &&
		a.Notes == o.Notes &&
		a.RequestedDate == o.RequestedDate &&
		a.RequestedTime == o.RequestedTime
}

func CompareIDs(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}

type ChangeEvent string

const (
	EventRequested ChangeEvent = "requested"
	EventUpdated   ChangeEvent = "updated"
	EventConfirmed ChangeEvent = "confirmed"
	EventCancelled ChangeEvent = "cancelled"
	EventDeleted   ChangeEvent = "deleted"
)

// StatusChange is one entry of an appointment's audit trail.
type StatusChange struct {
	bun.BaseModel `bun:"table:appointment_status_changes"`

	ID            uuid.UUID   `bun:"id,pk,type:uuid"`
	AppointmentID uuid.UUID   `bun:"appointment_id,notnull,type:uuid"`
	Event         ChangeEvent `bun:"event,notnull"`
	FromStatus    Status      `bun:"from_status,nullzero"`
	ToStatus      Status      `bun:"to_status,notnull"`
	ActorID       string      `bun:"actor_id,notnull"`
	Reason        string      `bun:"reason,nullzero"`
	CreatedAt     time.Time   `bun:"created_at,notnull"`
}

func (c *StatusChange) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if c.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		c.ID = id
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// AppointmentEvent is the payload handed to the notifier after a committed
// change. Delivery is someone else's job.
type AppointmentEvent struct {
	Type        ChangeEvent
	ActorID     string
	Appointment Appointment
	OccurredAt  time.Time
}
