package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

// Service manages the weekly windows pastors accept bookings in. Changing or
// removing a window never touches existing appointments.
type Service struct {
	repo         store.AvailabilityRepository
	storeTimeout time.Duration
	log          *zap.Logger
}

type Option func(*Service)

// WithStoreTimeout bounds every repository call. Zero leaves calls bounded
// only by the caller's context.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

func NewService(repo store.AvailabilityRepository, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{repo: repo, log: log.With(zap.String("component", "availability"))}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	PastorID  string
	DayOfWeek domain.Weekday
	StartTime domain.Clock
	EndTime   domain.Clock
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (domain.Availability, error) {
	pastorID := strings.TrimSpace(in.PastorID)
	if pastorID == "" {
		return domain.Availability{}, domain.NewValidationError("pastor_id is required")
	}
	if !domain.CanManageAvailability(actor, pastorID) {
		return domain.Availability{}, domain.ErrForbidden
	}

	candidate := domain.Availability{
		PastorID:  pastorID,
		DayOfWeek: in.DayOfWeek,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		IsActive:  true,
	}
	if err := validateWindow(candidate); err != nil {
		return domain.Availability{}, err
	}
	if err := s.precheckOverlap(ctx, candidate); err != nil {
		return domain.Availability{}, err
	}

	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	created, err := s.repo.CreateAvailability(sctx, candidate)
	if err != nil {
		return domain.Availability{}, storeError(err)
	}
	s.log.Info("availability created",
		zap.String("availability_id", created.ID.String()),
		zap.String("pastor_id", created.PastorID),
		zap.Stringer("day_of_week", created.DayOfWeek),
		zap.Stringer("start_time", created.StartTime),
		zap.Stringer("end_time", created.EndTime),
	)
	return created, nil
}

// UpdateInput carries the fields to change; nil fields keep their value.
type UpdateInput struct {
	DayOfWeek *domain.Weekday
	StartTime *domain.Clock
	EndTime   *domain.Clock
	IsActive  *bool
}

func (s *Service) Update(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID, in UpdateInput) (domain.Availability, error) {
	if id == uuid.Nil {
		return domain.Availability{}, domain.NewValidationError("availability id is required")
	}
	if !domain.CanManageAvailability(actor, pastorID) {
		return domain.Availability{}, domain.ErrForbidden
	}

	current, err := s.get(ctx, pastorID, id)
	if err != nil {
		return domain.Availability{}, err
	}

	next := current
	if in.DayOfWeek != nil {
		next.DayOfWeek = *in.DayOfWeek
	}
	if in.StartTime != nil {
		next.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		next.EndTime = *in.EndTime
	}
	if in.IsActive != nil {
		next.IsActive = *in.IsActive
	}
	if err := validateWindow(next); err != nil {
		return domain.Availability{}, err
	}
	if err := s.precheckOverlap(ctx, next); err != nil {
		return domain.Availability{}, err
	}

	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	updated, err := s.repo.UpdateAvailability(sctx, next)
	if err != nil {
		return domain.Availability{}, storeError(err)
	}
	s.log.Info("availability updated",
		zap.String("availability_id", updated.ID.String()),
		zap.String("pastor_id", updated.PastorID),
		zap.Bool("is_active", updated.IsActive),
	)
	return updated, nil
}

// Deactivate is idempotent: a missing or already inactive window is a no-op.
func (s *Service) Deactivate(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error {
	if !domain.CanManageAvailability(actor, pastorID) {
		return domain.ErrForbidden
	}
	current, err := s.get(ctx, pastorID, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !current.IsActive {
		return nil
	}

	current.IsActive = false
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if _, err := s.repo.UpdateAvailability(sctx, current); err != nil {
		err = storeError(err)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	s.log.Info("availability deactivated", zap.String("availability_id", id.String()), zap.String("pastor_id", pastorID))
	return nil
}

// Delete is idempotent: deleting a missing window succeeds.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error {
	if !domain.CanManageAvailability(actor, pastorID) {
		return domain.ErrForbidden
	}
	if _, err := s.get(ctx, pastorID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.repo.DeleteAvailability(sctx, id); err != nil {
		err = storeError(err)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	s.log.Info("availability deleted", zap.String("availability_id", id.String()), zap.String("pastor_id", pastorID))
	return nil
}

// ListActive returns the pastor's active windows ordered by weekday and start.
func (s *Service) ListActive(ctx context.Context, pastorID string) ([]domain.Availability, error) {
	pastorID = strings.TrimSpace(pastorID)
	if pastorID == "" {
		return nil, domain.NewValidationError("pastor_id is required")
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	rows, err := s.repo.ListAvailability(sctx, pastorID, true)
	if err != nil {
		return nil, storeError(err)
	}
	domain.SortAvailability(rows)
	return rows, nil
}

// Windows returns the active windows of one weekday.
func (s *Service) Windows(ctx context.Context, pastorID string, day domain.Weekday) ([]domain.Availability, error) {
	rows, err := s.ListActive(ctx, pastorID)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, w := range rows {
		if w.DayOfWeek == day {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, pastorID string, id uuid.UUID) (domain.Availability, error) {
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	a, err := s.repo.GetAvailability(sctx, id)
	if err != nil {
		return domain.Availability{}, storeError(err)
	}
	if a.PastorID != pastorID {
		return domain.Availability{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *Service) precheckOverlap(ctx context.Context, candidate domain.Availability) error {
	if !candidate.IsActive {
		return nil
	}
	sctx, cancel := s.storeContext(ctx)
	defer cancel()
	existing, err := s.repo.ListAvailability(sctx, candidate.PastorID, true)
	if err != nil {
		return storeError(err)
	}
	if hit, ok := domain.FindOverlap(existing, candidate); ok {
		return domain.Validationf("window overlaps %s %s-%s", hit.DayOfWeek, hit.StartTime, hit.EndTime)
	}
	return nil
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func validateWindow(a domain.Availability) error {
	if !a.DayOfWeek.Valid() {
		return domain.NewValidationError("day_of_week must be MON..SUN")
	}
	if !a.StartTime.Valid() || !a.EndTime.Valid() {
		return domain.NewValidationError("start_time and end_time must be valid times of day")
	}
	if a.StartTime >= a.EndTime {
		return domain.NewValidationError("start_time must be before end_time")
	}
	return nil
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrOverlap):
		return domain.NewValidationError("window overlaps an active window")
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	default:
		return err
	}
}
