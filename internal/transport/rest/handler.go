// Package rest exposes the booking engine and availability store over a
// JSON HTTP API built on gin.
package rest

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pastorcare/backend/internal/directory"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/availability"
	"pastorcare/backend/internal/service/booking"
	"pastorcare/backend/internal/transport/errmap"
)

type BookingEngine interface {
	RequestAppointment(ctx context.Context, actor domain.Actor, in booking.RequestInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, actor domain.Actor, f booking.ListFilter) ([]domain.Appointment, error)
	History(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.StatusChange, error)
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, location, message string) (domain.Appointment, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Appointment, error)
	UpdateRequest(ctx context.Context, actor domain.Actor, id uuid.UUID, in booking.UpdateRequestInput) (domain.Appointment, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	UpcomingConfirmed(ctx context.Context, actor domain.Actor, scope booking.Scope, pastorID string) ([]domain.Appointment, error)
	Location() *time.Location
}

type AvailabilityService interface {
	Create(ctx context.Context, actor domain.Actor, in availability.CreateInput) (domain.Availability, error)
	Update(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID, in availability.UpdateInput) (domain.Availability, error)
	Deactivate(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error
	Delete(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error
	ListActive(ctx context.Context, pastorID string) ([]domain.Availability, error)
}

type Directory interface {
	Pastor(ctx context.Context, id string) (directory.Pastor, error)
}

// CountdownSettings configures the projector behind the next-upcoming
// endpoints.
type CountdownSettings struct {
	Interval     time.Duration
	ReadRetries  int
	RetryBackoff time.Duration
	Now          func() time.Time
}

type Handler struct {
	booking   BookingEngine
	avail     AvailabilityService
	dir       Directory
	countdown CountdownSettings
	health    func(ctx context.Context) error
	log       *zap.Logger
}

type Option func(*Handler)

func WithDirectory(d Directory) Option {
	return func(h *Handler) { h.dir = d }
}

func WithCountdown(s CountdownSettings) Option {
	return func(h *Handler) { h.countdown = s }
}

// WithHealthCheck makes GET /health report 503 while check fails.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func NewHandler(b BookingEngine, a AvailabilityService, opts ...Option) *Handler {
	h := &Handler{
		booking: b,
		avail:   a,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(zap.String("component", "http"))
	return h
}

// fail writes the envelope for err. Unexpected errors are logged with the
// request id and hidden from the caller.
func (h *Handler) fail(c *gin.Context, err error) {
	cls := errmap.Classify(err)
	if cls.Internal() {
		h.log.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	Error(c, cls.HTTPStatus, cls.Code, cls.Message)
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			c.JSON(503, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(200, gin.H{"status": "ok"})
}

func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		BadRequest(c, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
