// Package notify hands committed appointment changes to the notification
// pipeline. Delivery to members and pastors happens downstream.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pastorcare/backend/internal/domain"
)

const DefaultChannel = "pastorcare.appointments"

type Message struct {
	Type        string             `json:"type"`
	ActorID     string             `json:"actor_id"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Appointment AppointmentPayload `json:"appointment"`
}

type AppointmentPayload struct {
	ID              string        `json:"id"`
	PastorID        string        `json:"pastor_id"`
	MemberID        string        `json:"member_id"`
	Subject         string        `json:"subject"`
	Notes           string        `json:"notes,omitempty"`
	RequestedDate   domain.Date   `json:"requested_date"`
	RequestedTime   domain.Clock  `json:"requested_time"`
	Status          domain.Status `json:"status"`
	Location        string        `json:"location,omitempty"`
	MessageToMember string        `json:"message_to_member,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CancelledBy     string        `json:"cancelled_by,omitempty"`
	Version         int64         `json:"version"`
}

// Encode renders ev as the JSON message published on the channel.
func Encode(ev domain.AppointmentEvent) ([]byte, error) {
	a := ev.Appointment
	msg := Message{
		Type:       "appointment." + string(ev.Type),
		ActorID:    ev.ActorID,
		OccurredAt: ev.OccurredAt.UTC(),
		Appointment: AppointmentPayload{
			ID:              a.ID.String(),
			PastorID:        a.PastorID,
			MemberID:        a.MemberID,
			Subject:         a.Subject,
			Notes:           a.Notes,
			RequestedDate:   a.RequestedDate,
			RequestedTime:   a.RequestedTime,
			Status:          a.Status,
			Location:        a.Location,
			MessageToMember: a.MessageToMember,
			CancelReason:    a.CancelReason,
			CancelledBy:     a.CancelledBy,
			Version:         a.Version,
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return b, nil
}

// Redis publishes events on a pub/sub channel.
type Redis struct {
	client  redis.UniversalClient
	channel string
}

func NewRedis(client redis.UniversalClient, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

// Log writes events to the logger. Used when no broker is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.With(zap.String("component", "notify"))}
}

func (l *Log) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	l.log.Info("appointment event",
		zap.String("type", "appointment."+string(ev.Type)),
		zap.String("appointment_id", ev.Appointment.ID.String()),
		zap.String("actor_id", ev.ActorID),
		zap.String("status", string(ev.Appointment.Status)),
	)
	return nil
}
