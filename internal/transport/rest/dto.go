package rest

import (
	"time"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/countdown"
)

// AppointmentRequest keeps the slot fields as pointers: the zero Clock is
// 00:00, so an omitted time must stay distinguishable from midnight.
type AppointmentRequest struct {
	PastorID      string        `json:"pastor_id" binding:"required"`
	Subject       string        `json:"subject" binding:"required"`
	Notes         string        `json:"notes"`
	RequestedDate *domain.Date  `json:"requested_date"`
	RequestedTime *domain.Clock `json:"requested_time"`
}

// AppointmentPatch either moves the status (CONFIRMED or CANCELLED) or
// edits the member-owned fields of a pending request.
type AppointmentPatch struct {
	Status          string  `json:"status"`
	Location        string  `json:"location"`
	MessageToMember string  `json:"message_to_member"`
	Reason          string  `json:"reason"`
	Subject         *string `json:"subject"`
	Notes           *string `json:"notes"`
}

type AppointmentListQuery struct {
	PastorID string `form:"pastor_id"`
	MemberID string `form:"member_id"`
	Status   string `form:"status"`
}

type AppointmentResponse struct {
	ID              string       `json:"id"`
	PastorID        string       `json:"pastor_id"`
	MemberID        string       `json:"member_id"`
	Subject         string       `json:"subject"`
	Notes           string       `json:"notes,omitempty"`
	RequestedDate   domain.Date  `json:"requested_date"`
	RequestedTime   domain.Clock `json:"requested_time"`
	Status          string       `json:"status"`
	Location        string       `json:"location,omitempty"`
	MessageToMember string       `json:"message_to_member,omitempty"`
	CancelReason    string       `json:"cancel_reason,omitempty"`
	CancelledBy     string       `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
	Version         int64        `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID.String(),
		PastorID:        a.PastorID,
		MemberID:        a.MemberID,
		Subject:         a.Subject,
		Notes:           a.Notes,
		RequestedDate:   a.RequestedDate,
		RequestedTime:   a.RequestedTime,
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

func toAppointmentList(appts []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type StatusChangeResponse struct {
	Event      string    `json:"event"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toStatusChangeList(changes []domain.StatusChange) []StatusChangeResponse {
	out := make([]StatusChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, StatusChangeResponse{
			Event:      string(c.Event),
			FromStatus: string(c.FromStatus),
			ToStatus:   string(c.ToStatus),
			ActorID:    c.ActorID,
			Reason:     c.Reason,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

type AvailabilityRequest struct {
	DayOfWeek *domain.Weekday `json:"day_of_week"`
	StartTime *domain.Clock   `json:"start_time"`
	EndTime   *domain.Clock   `json:"end_time"`
}

type AvailabilityPatch struct {
	DayOfWeek *domain.Weekday `json:"day_of_week"`
	StartTime *domain.Clock   `json:"start_time"`
	EndTime   *domain.Clock   `json:"end_time"`
	IsActive  *bool           `json:"is_active"`
}

type AvailabilityResponse struct {
	ID        string         `json:"id"`
	PastorID  string         `json:"pastor_id"`
	DayOfWeek domain.Weekday `json:"day_of_week"`
	StartTime domain.Clock   `json:"start_time"`
	EndTime   domain.Clock   `json:"end_time"`
	IsActive  bool           `json:"is_active"`
}

func toAvailabilityResponse(a domain.Availability) AvailabilityResponse {
	return AvailabilityResponse{
		ID:        a.ID.String(),
		PastorID:  a.PastorID,
		DayOfWeek: a.DayOfWeek,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		IsActive:  a.IsActive,
	}
}

type NextUpcomingResponse struct {
	Appointment *AppointmentResponse `json:"appointment"`
	PastorName  string               `json:"pastor_name,omitempty"`
	Remaining   *countdown.Remaining `json:"remaining,omitempty"`
	Stale       bool                 `json:"stale,omitempty"`
	ComputedAt  time.Time            `json:"computed_at"`
}
