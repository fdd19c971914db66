package rest

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/booking"
	"pastorcare/backend/internal/service/countdown"
)

func (h *Handler) projector(actor domain.Actor, scope booking.Scope, pastorID string) *countdown.Projector {
	opts := []countdown.Option{
		countdown.WithLocation(h.booking.Location()),
		countdown.WithClock(h.countdown.Now),
		countdown.WithInterval(h.countdown.Interval),
		countdown.WithRetries(h.countdown.ReadRetries, h.countdown.RetryBackoff),
		countdown.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrStoreUnavailable) }),
		countdown.WithLogger(h.log),
	}
	return countdown.NewProjector(func(ctx context.Context) ([]domain.Appointment, error) {
		return h.booking.UpcomingConfirmed(ctx, actor, scope, pastorID)
	}, opts...)
}

func (h *Handler) nextUpcomingResponse(ctx context.Context, p countdown.Projection) NextUpcomingResponse {
	out := NextUpcomingResponse{
		Remaining:  p.Remaining,
		Stale:      p.Stale,
		ComputedAt: p.ComputedAt,
	}
	if p.Appointment == nil {
		return out
	}
	a := toAppointmentResponse(*p.Appointment)
	out.Appointment = &a
	if h.dir != nil {
		if pastor, err := h.dir.Pastor(ctx, p.Appointment.PastorID); err == nil {
			out.PastorName = pastor.DisplayName
		}
	}
	return out
}

// refresh evaluates the countdown once. A store that stays unavailable
// after the retries yields a stale empty projection; other errors are
// returned.
func (h *Handler) refresh(ctx context.Context, p *countdown.Projector) (countdown.Projection, error) {
	proj, err := p.Refresh(ctx)
	if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) {
		return countdown.Projection{}, err
	}
	return proj, nil
}

func (h *Handler) scopeFromQuery(c *gin.Context) (booking.Scope, bool) {
	scope, err := booking.ParseScope(c.Query("scope"))
	if err != nil {
		h.fail(c, err)
		return "", false
	}
	return scope, true
}

// NextUpcoming returns the nearest confirmed appointment for the scope, or
// null.
// GET /api/v1/appointments/next-upcoming?scope=pastor|global
func (h *Handler) NextUpcoming(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	proj, err := h.refresh(ctx, h.projector(actor, scope, c.Query("pastor_id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	OK(c, h.nextUpcomingResponse(ctx, proj))
}

// StreamNextUpcoming pushes a countdown event every interval for as long as
// the client stays connected.
// GET /api/v1/appointments/next-upcoming/stream?scope=pastor|global
func (h *Handler) StreamNextUpcoming(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	scope, ok := h.scopeFromQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p := h.projector(actor, scope, c.Query("pastor_id"))

	first, err := h.refresh(ctx, p)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(proj countdown.Projection) bool {
		c.SSEvent("countdown", h.nextUpcomingResponse(ctx, proj))
		c.Writer.Flush()
		return ctx.Err() == nil
	}
	if !send(first) {
		return
	}
	if err := p.Tick(ctx, send); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Debug("countdown stream ended", zap.Error(err))
	}
}
