package grpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/countdown"
)

type Appointment struct {
	ID              string                 `json:"id"`
	PastorID        string                 `json:"pastor_id"`
	MemberID        string                 `json:"member_id"`
	Subject         string                 `json:"subject"`
	Notes           string                 `json:"notes,omitempty"`
	RequestedDate   string                 `json:"requested_date"`
	RequestedTime   string                 `json:"requested_time"`
	StartsAt        *timestamppb.Timestamp `json:"starts_at"`
	Status          string                 `json:"status"`
	Location        string                 `json:"location,omitempty"`
	MessageToMember string                 `json:"message_to_member,omitempty"`
	CancelReason    string                 `json:"cancel_reason,omitempty"`
	CancelledBy     string                 `json:"cancelled_by,omitempty"`
	CancelledAt     *timestamppb.Timestamp `json:"cancelled_at,omitempty"`
	ConfirmedAt     *timestamppb.Timestamp `json:"confirmed_at,omitempty"`
	Version         int64                  `json:"version"`
	CreatedAt       *timestamppb.Timestamp `json:"created_at"`
	UpdatedAt       *timestamppb.Timestamp `json:"updated_at"`
}

type Availability struct {
	ID        string `json:"id"`
	PastorID  string `json:"pastor_id"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsActive  bool   `json:"is_active"`
}

type Remaining struct {
	Days    int32 `json:"days"`
	Hours   int32 `json:"hours"`
	Minutes int32 `json:"minutes"`
}

type Empty struct{}

type RequestAppointmentRequest struct {
	PastorID      string `json:"pastor_id"`
	Subject       string `json:"subject"`
	Notes         string `json:"notes"`
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
}

type AppointmentReply struct {
	Appointment *Appointment `json:"appointment"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type ListAppointmentsRequest struct {
	PastorID string `json:"pastor_id"`
	MemberID string `json:"member_id"`
	Status   string `json:"status"`
}

type ListAppointmentsReply struct {
	Appointments []*Appointment `json:"appointments"`
}

type ConfirmAppointmentRequest struct {
	AppointmentID   string `json:"appointment_id"`
	Location        string `json:"location"`
	MessageToMember string `json:"message_to_member"`
}

type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type DeleteAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type NextUpcomingRequest struct {
	Scope    string `json:"scope"`
	PastorID string `json:"pastor_id"`
}

type NextUpcomingReply struct {
	Appointment *Appointment `json:"appointment"`
	Remaining   *Remaining   `json:"remaining,omitempty"`
	Stale       bool         `json:"stale,omitempty"`
}

type CreateAvailabilityRequest struct {
	PastorID  string `json:"pastor_id"`
	DayOfWeek string `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// UpdateAvailabilityRequest leaves nil fields unchanged.
type UpdateAvailabilityRequest struct {
	PastorID       string  `json:"pastor_id"`
	AvailabilityID string  `json:"availability_id"`
	DayOfWeek      *string `json:"day_of_week,omitempty"`
	StartTime      *string `json:"start_time,omitempty"`
	EndTime        *string `json:"end_time,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

type AvailabilityRef struct {
	PastorID       string `json:"pastor_id"`
	AvailabilityID string `json:"availability_id"`
}

type AvailabilityReply struct {
	Availability *Availability `json:"availability"`
}

type ListAvailabilityRequest struct {
	PastorID string `json:"pastor_id"`
}

type ListAvailabilityReply struct {
	Availability []*Availability `json:"availability"`
}

func timestampOrNil(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

func toWireAppointment(a domain.Appointment, loc *time.Location) *Appointment {
	return &Appointment{
		ID:              a.ID.String(),
		PastorID:        a.PastorID,
		MemberID:        a.MemberID,
		Subject:         a.Subject,
		Notes:           a.Notes,
		RequestedDate:   a.RequestedDate.String(),
		RequestedTime:   a.RequestedTime.String(),
		StartsAt:        timestamppb.New(a.Instant(loc)),
		Status:          string(a.Status),
		Location:        a.Location,
		MessageToMember: a.MessageToMember,
		CancelReason:    a.CancelReason,
		CancelledBy:     a.CancelledBy,
		CancelledAt:     timestampOrNil(a.CancelledAt),
		ConfirmedAt:     timestampOrNil(a.ConfirmedAt),
		Version:         a.Version,
		CreatedAt:       timestamppb.New(a.CreatedAt),
		UpdatedAt:       timestamppb.New(a.UpdatedAt),
	}
}

func toWireAvailability(a domain.Availability) *Availability {
	return &Availability{
		ID:        a.ID.String(),
		PastorID:  a.PastorID,
		DayOfWeek: a.DayOfWeek.String(),
		StartTime: a.StartTime.String(),
		EndTime:   a.EndTime.String(),
		IsActive:  a.IsActive,
	}
}

func toWireRemaining(r *countdown.Remaining) *Remaining {
	if r == nil {
		return nil
	}
	return &Remaining{Days: int32(r.Days), Hours: int32(r.Hours), Minutes: int32(r.Minutes)}
}
