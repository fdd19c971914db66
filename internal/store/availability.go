package store

import (
	"context"

	"github.com/google/uuid"

	"pastorcare/backend/internal/domain"
)

// AvailabilityRepository persists weekly windows. Implementations reject a
// write that would leave two active windows of one pastor and weekday
// overlapping with ErrOverlap, atomically with the write.
type AvailabilityRepository interface {
	CreateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (domain.Availability, error)
	UpdateAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error)
	DeleteAvailability(ctx context.Context, id uuid.UUID) error
	// ListAvailability orders by weekday then start time.
	ListAvailability(ctx context.Context, pastorID string, activeOnly bool) ([]domain.Availability, error)
}
