// Package countdown derives the nearest future confirmed appointment and the
// time left until it.
package countdown

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pastorcare/backend/internal/domain"
)

// NextUpcoming returns the CONFIRMED appointment with the earliest start
// strictly after now, or nil. Equal starts are ordered by id.
func NextUpcoming(appts []domain.Appointment, now time.Time, loc *time.Location) *domain.Appointment {
	if loc == nil {
		loc = time.UTC
	}
	var (
		best        *domain.Appointment
		bestInstant time.Time
	)
	for i := range appts {
		a := &appts[i]
		if a.Status != domain.StatusConfirmed {
			continue
		}
		at := a.Instant(loc)
		if !at.After(now) {
			continue
		}
		if best == nil || at.Before(bestInstant) || (at.Equal(bestInstant) && domain.CompareIDs(a.ID, best.ID) < 0) {
			best, bestInstant = a, at
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

type Remaining struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// FormatRemaining splits the time until instant into whole days, hours and
// minutes. Seconds are truncated; an instant in the past yields zero.
func FormatRemaining(instant, now time.Time) Remaining {
	d := instant.Sub(now)
	if d <= 0 {
		return Remaining{}
	}
	total := int(d / time.Minute)
	return Remaining{
		Days:    total / (24 * 60),
		Hours:   total % (24 * 60) / 60,
		Minutes: total % 60,
	}
}

// Projection is one evaluation of the countdown. Appointment is nil when
// nothing is upcoming; Stale marks an evaluation whose read failed.
type Projection struct {
	Appointment *domain.Appointment `json:"appointment"`
	Remaining   *Remaining          `json:"remaining,omitempty"`
	Stale       bool                `json:"stale,omitempty"`
	ComputedAt  time.Time           `json:"computed_at"`
}

// Source reads the candidate appointments for one viewer.
type Source func(ctx context.Context) ([]domain.Appointment, error)

const (
	DefaultInterval     = time.Minute
	DefaultReadRetries  = 3
	DefaultRetryBackoff = 200 * time.Millisecond
)

type Projector struct {
	source   Source
	loc      *time.Location
	now      func() time.Time
	interval time.Duration
	retries  int
	backoff  time.Duration
	retryIf  func(error) bool
	log      *zap.Logger
}

type Option func(*Projector)

func WithInterval(d time.Duration) Option {
	return func(p *Projector) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRetries sets how many extra reads are attempted after a failure and
// the initial delay between them. The delay doubles per attempt.
func WithRetries(n int, backoff time.Duration) Option {
	return func(p *Projector) {
		if n >= 0 {
			p.retries = n
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

// WithRetryIf limits retries to errors for which fn reports true. By
// default every read error is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *Projector) {
		if fn != nil {
			p.retryIf = fn
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(p *Projector) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Projector) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Projector) {
		if log != nil {
			p.log = log
		}
	}
}

func NewProjector(source Source, opts ...Option) *Projector {
	p := &Projector{
		source:   source,
		loc:      time.UTC,
		now:      time.Now,
		interval: DefaultInterval,
		retries:  DefaultReadRetries,
		backoff:  DefaultRetryBackoff,
		retryIf:  func(error) bool { return true },
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("component", "countdown"))
	return p
}

// Refresh evaluates the countdown once. A read error is returned only after
// all retries failed or ctx ended.
func (p *Projector) Refresh(ctx context.Context) (Projection, error) {
	appts, err := p.read(ctx)
	now := p.now()
	if err != nil {
		return Projection{Stale: true, ComputedAt: now.UTC()}, err
	}
	return p.project(appts, now), nil
}

// Run emits a projection immediately and then once per interval until ctx
// is done. Failed reads emit a stale empty projection and the loop keeps
// going. Returning false from emit stops the loop.
func (p *Projector) Run(ctx context.Context, emit func(Projection) bool) error {
	return p.run(ctx, true, emit)
}

// Tick is Run without the immediate first evaluation.
func (p *Projector) Tick(ctx context.Context, emit func(Projection) bool) error {
	return p.run(ctx, false, emit)
}

func (p *Projector) run(ctx context.Context, immediate bool, emit func(Projection) bool) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if immediate {
			proj, err := p.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn("countdown read failed", zap.Error(err))
			}
			if !emit(proj) {
				return nil
			}
		}
		immediate = true

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Projector) project(appts []domain.Appointment, now time.Time) Projection {
	proj := Projection{ComputedAt: now.UTC()}
	next := NextUpcoming(appts, now, p.loc)
	if next == nil {
		return proj
	}
	rem := FormatRemaining(next.Instant(p.loc), now)
	proj.Appointment = next
	proj.Remaining = &rem
	return proj
}

func (p *Projector) read(ctx context.Context) ([]domain.Appointment, error) {
	delay := p.backoff
	var err error
	for attempt := 0; ; attempt++ {
		var appts []domain.Appointment
		appts, err = p.source(ctx)
		if err == nil {
			return appts, nil
		}
		if attempt >= p.retries || !p.retryIf(err) {
			return nil, err
		}
		p.log.Debug("countdown read retry", zap.Int("attempt", attempt+1), zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}
