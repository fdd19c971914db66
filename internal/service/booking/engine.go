// Package booking validates booking requests against availability and
// existing bookings and drives the appointment lifecycle.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pastorcare/backend/internal/directory"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

const (
	maxSubjectLen  = 200
	maxNotesLen    = 2000
	maxReasonLen   = 500
	maxMessageLen  = 1000
	maxLocationLen = 200
	maxKeyLen      = 256
)

// AvailabilitySource yields the active windows of one pastor and weekday.
type AvailabilitySource interface {
	Windows(ctx context.Context, pastorID string, day domain.Weekday) ([]domain.Availability, error)
}

type Directory interface {
	Pastor(ctx context.Context, id string) (directory.Pastor, error)
}

// Notifier receives committed changes. Errors are logged, never returned to
// the caller of the engine.
type Notifier interface {
	Notify(ctx context.Context, ev domain.AppointmentEvent) error
}

type Engine struct {
	appts        store.AppointmentRepository
	windows      AvailabilitySource
	dir          Directory
	notifier     Notifier
	log          *zap.Logger
	loc          *time.Location
	now          func() time.Time
	storeTimeout time.Duration
}

type Option func(*Engine)

func WithDirectory(d Directory) Option {
	return func(e *Engine) { e.dir = d }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithLocation sets the single operating time zone requested dates and
// times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStoreTimeout bounds every store call; zero leaves the caller's
// deadline alone.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) { e.storeTimeout = d }
}

func NewEngine(appts store.AppointmentRepository, windows AvailabilitySource, opts ...Option) *Engine {
	e := &Engine{
		appts:   appts,
		windows: windows,
		log:     zap.NewNop(),
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(zap.String("component", "booking"))
	return e
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

type RequestInput struct {
	PastorID       string
	Subject        string
	Notes          string
	Date           domain.Date
	Time           domain.Clock
	IdempotencyKey string
}

// RequestAppointment books a PENDING appointment for the acting member.
func (e *Engine) RequestAppointment(ctx context.Context, actor domain.Actor, in RequestInput) (domain.Appointment, error) {
	pastorID := strings.TrimSpace(in.PastorID)
	subject := strings.TrimSpace(in.Subject)
	notes := strings.TrimSpace(in.Notes)
	switch {
	case pastorID == "":
		return domain.Appointment{}, domain.NewValidationError("pastor_id is required")
	case subject == "":
		return domain.Appointment{}, domain.NewValidationError("subject is required")
	case utf8.RuneCountInString(subject) > maxSubjectLen:
		return domain.Appointment{}, domain.Validationf("subject must be at most %d characters", maxSubjectLen)
	case utf8.RuneCountInString(notes) > maxNotesLen:
		return domain.Appointment{}, domain.Validationf("notes must be at most %d characters", maxNotesLen)
	case in.Date.IsZero():
		return domain.Appointment{}, domain.NewValidationError("date is required")
	case !in.Time.Valid():
		return domain.Appointment{}, domain.NewValidationError("time is invalid")
	}
	if !actor.Valid() || !domain.CanRequest(actor, pastorID) {
		return domain.Appointment{}, domain.ErrForbidden
	}

	appt := domain.Appointment{
		PastorID:      pastorID,
		MemberID:      actor.ID,
		Subject:       subject,
		Notes:         notes,
		RequestedDate: in.Date,
		RequestedTime: in.Time,
		Status:        domain.StatusPending,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxKeyLen {
			return domain.Appointment{}, domain.NewValidationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("pastorcare:request_appointment:"+actor.ID+":"+key))

		existing, err := e.lookup(ctx, appt.ID)
		switch {
		case err == nil:
			if !existing.SameRequest(appt) {
				return domain.Appointment{}, domain.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.Appointment{}, err
		}
	}

	if !appt.Instant(e.loc).After(e.now()) {
		return domain.Appointment{}, domain.NewValidationError("requested time is in the past")
	}

	if e.dir != nil {
		if _, err := e.dir.Pastor(ctx, pastorID); err != nil {
			if errors.Is(err, directory.ErrUnknownPastor) {
				return domain.Appointment{}, domain.Validationf("unknown pastor %q", pastorID)
			}
			return domain.Appointment{}, err
		}
	}

	if err := e.checkAvailability(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}
	if err := e.precheckSlot(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	created, err := e.appts.CreateAppointment(sctx, appt, domain.StatusChange{
		Event:   domain.EventRequested,
		ActorID: actor.ID,
	})
	if err != nil {
		err = storeError(err)
		if errors.Is(err, domain.ErrSlotTaken) {
			e.log.Info("slot taken at insert",
				zap.String("pastor_id", pastorID),
				zap.Stringer("date", in.Date),
				zap.Stringer("time", in.Time),
			)
		}
		return domain.Appointment{}, err
	}

	e.log.Info("appointment requested",
		zap.String("appointment_id", created.ID.String()),
		zap.String("pastor_id", created.PastorID),
		zap.String("member_id", created.MemberID),
	)
	e.notify(ctx, domain.EventRequested, actor.ID, created)
	return created, nil
}

// Confirm moves a PENDING appointment to CONFIRMED. Repeating a confirm
// with the same location and message returns the stored record.
func (e *Engine) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, location, message string) (domain.Appointment, error) {
	location = strings.TrimSpace(location)
	message = strings.TrimSpace(message)
	switch {
	case location == "":
		return domain.Appointment{}, domain.NewValidationError("location is required")
	case utf8.RuneCountInString(location) > maxLocationLen:
		return domain.Appointment{}, domain.Validationf("location must be at most %d characters", maxLocationLen)
	case utf8.RuneCountInString(message) > maxMessageLen:
		return domain.Appointment{}, domain.Validationf("message_to_member must be at most %d characters", maxMessageLen)
	}

	out, changed, err := e.transition(ctx, id, func(cur domain.Appointment) (domain.Appointment, *domain.StatusChange, error) {
		if !domain.CanConfirm(actor, cur) {
			return cur, nil, domain.ErrForbidden
		}
		if cur.Status == domain.StatusConfirmed && cur.Location == location && cur.MessageToMember == message {
			return cur, nil, nil
		}
		if !cur.Status.CanTransitionTo(domain.StatusConfirmed) {
			return cur, nil, &domain.TransitionError{From: cur.Status, To: domain.StatusConfirmed}
		}
		now := e.now().UTC()
		next := cur
		next.Status = domain.StatusConfirmed
		next.Location = location
		next.MessageToMember = message
		next.ConfirmedAt = &now
		return next, &domain.StatusChange{
			Event:      domain.EventConfirmed,
			FromStatus: cur.Status,
			ToStatus:   domain.StatusConfirmed,
			ActorID:    actor.ID,
		}, nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	if changed {
		e.log.Info("appointment confirmed", zap.String("appointment_id", out.ID.String()), zap.String("actor_id", actor.ID))
		e.notify(ctx, domain.EventConfirmed, actor.ID, out)
	}
	return out, nil
}

// Cancel is open to either party. CANCELLED is terminal.
func (e *Engine) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReasonLen {
		return domain.Appointment{}, domain.Validationf("reason must be at most %d characters", maxReasonLen)
	}

	out, _, err := e.transition(ctx, id, func(cur domain.Appointment) (domain.Appointment, *domain.StatusChange, error) {
		if !domain.CanCancel(actor, cur) {
			return cur, nil, domain.ErrForbidden
		}
		if !cur.Status.CanTransitionTo(domain.StatusCancelled) {
			return cur, nil, &domain.TransitionError{From: cur.Status, To: domain.StatusCancelled}
		}
		now := e.now().UTC()
		next := cur
		next.Status = domain.StatusCancelled
		next.CancelReason = reason
		next.CancelledBy = actor.ID
		next.CancelledAt = &now
		return next, &domain.StatusChange{
			Event:      domain.EventCancelled,
			FromStatus: cur.Status,
			ToStatus:   domain.StatusCancelled,
			ActorID:    actor.ID,
			Reason:     reason,
		}, nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	e.log.Info("appointment cancelled",
		zap.String("appointment_id", out.ID.String()),
		zap.String("actor_id", actor.ID),
		zap.String("reason", reason),
	)
	e.notify(ctx, domain.EventCancelled, actor.ID, out)
	return out, nil
}

type UpdateRequestInput struct {
	Subject *string
	Notes   *string
}

// UpdateRequest edits the member-owned fields of a PENDING appointment.
func (e *Engine) UpdateRequest(ctx context.Context, actor domain.Actor, id uuid.UUID, in UpdateRequestInput) (domain.Appointment, error) {
	var subject, notes string
	if in.Subject != nil {
		subject = strings.TrimSpace(*in.Subject)
		if subject == "" {
			return domain.Appointment{}, domain.NewValidationError("subject is required")
		}
		if utf8.RuneCountInString(subject) > maxSubjectLen {
			return domain.Appointment{}, domain.Validationf("subject must be at most %d characters", maxSubjectLen)
		}
	}
	if in.Notes != nil {
		notes = strings.TrimSpace(*in.Notes)
		if utf8.RuneCountInString(notes) > maxNotesLen {
			return domain.Appointment{}, domain.Validationf("notes must be at most %d characters", maxNotesLen)
		}
	}

	out, changed, err := e.transition(ctx, id, func(cur domain.Appointment) (domain.Appointment, *domain.StatusChange, error) {
		if !domain.CanEditRequest(actor, cur) {
			return cur, nil, domain.ErrForbidden
		}
		if cur.Status != domain.StatusPending {
			return cur, nil, fmt.Errorf("%w: only pending requests can be edited", domain.ErrInvalidTransition)
		}
		next := cur
		if in.Subject != nil {
			next.Subject = subject
		}
		if in.Notes != nil {
			next.Notes = notes
		}
		if next.Subject == cur.Subject && next.Notes == cur.Notes {
			return cur, nil, nil
		}
		return next, &domain.StatusChange{
			Event:      domain.EventUpdated,
			FromStatus: cur.Status,
			ToStatus:   cur.Status,
			ActorID:    actor.ID,
		}, nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	if changed {
		e.notify(ctx, domain.EventUpdated, actor.ID, out)
	}
	return out, nil
}

// Delete hides the appointment and frees its slot; the status history is
// kept for audit.
func (e *Engine) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	cur, err := e.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanDelete(actor, cur) {
		return domain.ErrForbidden
	}

	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	if err := e.appts.DeleteAppointment(sctx, id, domain.StatusChange{
		Event:   domain.EventDeleted,
		ActorID: actor.ID,
	}); err != nil {
		return storeError(err)
	}
	e.log.Info("appointment deleted", zap.String("appointment_id", id.String()), zap.String("actor_id", actor.ID))
	e.notify(ctx, domain.EventDeleted, actor.ID, cur)
	return nil
}

// GetAppointment hides appointments the actor is not a party to.
func (e *Engine) GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error) {
	a, err := e.lookup(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !domain.CanView(actor, a) {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return a, nil
}

type ListFilter struct {
	PastorID string
	MemberID string
	Status   domain.Status
}

// ListAppointments returns the appointments the actor may see, ordered by
// date, time and id. Non-admins only ever see appointments they are a
// party to.
func (e *Engine) ListAppointments(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Appointment, error) {
	filter := store.AppointmentFilter{
		PastorID: strings.TrimSpace(f.PastorID),
		MemberID: strings.TrimSpace(f.MemberID),
	}
	if f.Status != "" {
		filter.Statuses = []domain.Status{f.Status}
	}
	if !actor.IsAdmin() {
		filter.Involving = actor.ID
	}
	return e.list(ctx, filter)
}

func (e *Engine) History(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]domain.StatusChange, error) {
	if _, err := e.GetAppointment(ctx, actor, id); err != nil {
		return nil, err
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	changes, err := e.appts.ListStatusChanges(sctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return changes, nil
}

type Scope string

const (
	ScopePastor Scope = "pastor"
	ScopeGlobal Scope = "global"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopePastor:
		return ScopePastor, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	default:
		return "", domain.Validationf("unknown scope %q", s)
	}
}

// UpcomingConfirmed lists the CONFIRMED appointments from today on that the
// countdown considers for scope.
//
// ScopePastor narrows to one pastor: the acting pastor, or pastorID for
// admins and members (members only see their own bookings with that
// pastor). ScopeGlobal covers everything for admins and every appointment
// the actor is a party to otherwise.
func (e *Engine) UpcomingConfirmed(ctx context.Context, actor domain.Actor, scope Scope, pastorID string) ([]domain.Appointment, error) {
	pastorID = strings.TrimSpace(pastorID)
	filter := store.AppointmentFilter{
		Statuses: []domain.Status{domain.StatusConfirmed},
		FromDate: domain.DateOf(e.now().In(e.loc)),
	}

	switch scope {
	case ScopePastor:
		switch {
		case actor.IsPastor():
			if pastorID != "" && pastorID != actor.ID {
				return nil, domain.ErrForbidden
			}
			filter.PastorID = actor.ID
		case pastorID == "":
			return nil, domain.NewValidationError("pastor_id is required for pastor scope")
		case actor.IsAdmin():
			filter.PastorID = pastorID
		default:
			filter.PastorID = pastorID
			filter.MemberID = actor.ID
		}
	case ScopeGlobal:
		if !actor.IsAdmin() {
			filter.Involving = actor.ID
		}
	default:
		return nil, domain.Validationf("unknown scope %q", scope)
	}
	return e.list(ctx, filter)
}

// transition applies fn to the current appointment and writes the result
// with a version check. A lost race is retried once against a fresh copy.
// fn returning a nil change means nothing needs writing.
func (e *Engine) transition(ctx context.Context, id uuid.UUID, fn func(cur domain.Appointment) (domain.Appointment, *domain.StatusChange, error)) (domain.Appointment, bool, error) {
	const attempts = 2
	for attempt := 1; attempt <= attempts; attempt++ {
		cur, err := e.lookup(ctx, id)
		if err != nil {
			return domain.Appointment{}, false, err
		}
		next, change, err := fn(cur)
		if err != nil {
			return domain.Appointment{}, false, err
		}
		if change == nil {
			return cur, false, nil
		}

		sctx, cancel := e.storeContext(ctx)
		updated, err := e.appts.UpdateAppointment(sctx, next, change)
		cancel()
		if errors.Is(err, store.ErrStaleVersion) {
			e.log.Debug("version conflict",
				zap.String("appointment_id", id.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return domain.Appointment{}, false, storeError(err)
		}
		return updated, true, nil
	}
	return domain.Appointment{}, false, domain.ErrConcurrentModification
}

func (e *Engine) checkAvailability(ctx context.Context, appt domain.Appointment) error {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	windows, err := e.windows.Windows(sctx, appt.PastorID, appt.RequestedDate.Weekday())
	if err != nil {
		return storeError(err)
	}
	for _, w := range windows {
		if w.IsActive && w.Contains(appt.RequestedTime) {
			return nil
		}
	}
	return domain.ErrOutsideAvailability
}

// precheckSlot gives a friendly early answer. The unique index in the store
// is what actually prevents double booking.
func (e *Engine) precheckSlot(ctx context.Context, appt domain.Appointment) error {
	f := store.ByPastor(appt.PastorID, domain.StatusPending, domain.StatusConfirmed)
	f.FromDate = appt.RequestedDate
	booked, err := e.list(ctx, f)
	if err != nil {
		return err
	}
	for _, b := range booked {
		if b.RequestedDate == appt.RequestedDate && b.RequestedTime == appt.RequestedTime {
			return domain.ErrSlotTaken
		}
	}
	return nil
}

func (e *Engine) lookup(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, domain.NewValidationError("appointment id is required")
	}
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	a, err := e.appts.GetAppointment(sctx, id)
	if err != nil {
		return domain.Appointment{}, storeError(err)
	}
	return a, nil
}

func (e *Engine) list(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	sctx, cancel := e.storeContext(ctx)
	defer cancel()
	rows, err := e.appts.ListAppointments(sctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	return rows, nil
}

func (e *Engine) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.storeTimeout)
}

func (e *Engine) notify(ctx context.Context, typ domain.ChangeEvent, actorID string, appt domain.Appointment) {
	if e.notifier == nil {
		return
	}
	nctx, cancel := e.storeContext(context.WithoutCancel(ctx))
	defer cancel()
	err := e.notifier.Notify(nctx, domain.AppointmentEvent{
		Type:        typ,
		ActorID:     actorID,
		Appointment: appt,
		OccurredAt:  e.now().UTC(),
	})
	if err != nil {
		e.log.Warn("notification failed",
			zap.String("event", string(typ)),
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, store.ErrSlotTaken):
		return domain.ErrSlotTaken
	case errors.Is(err, store.ErrIdempotencyConflict):
		return domain.ErrIdempotencyConflict
	case errors.Is(err, store.ErrStaleVersion):
		return domain.ErrConcurrentModification
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}
