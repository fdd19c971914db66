package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Availability is a recurring weekly window during which a pastor accepts
// bookings. Windows are half-open: [StartTime, EndTime).
type Availability struct {
	bun.BaseModel `bun:"table:availability"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	PastorID  string    `bun:"pastor_id,notnull"`
	DayOfWeek Weekday   `bun:"day_of_week,notnull"`
	StartTime Clock     `bun:"start_time,type:time,notnull"`
	EndTime   Clock     `bun:"end_time,type:time,notnull"`
	IsActive  bool      `bun:"is_active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (a *Availability) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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

func (a Availability) Contains(c Clock) bool {
	return a.StartTime <= c && c < a.EndTime
}

func (a Availability) Overlaps(o Availability) bool {
	return a.StartTime < o.EndTime && o.StartTime < a.EndTime
}

// FindOverlap reports the first active window in existing that shares the
// candidate's pastor and weekday and overlaps it. The candidate itself (same
// ID) is skipped so updates can be checked against their own old row.
func FindOverlap(existing []Availability, candidate Availability) (Availability, bool) {
	if !candidate.IsActive {
		return Availability{}, false
	}
	for _, e := range existing {
		if !e.IsActive || e.ID == candidate.ID {
			continue
		}
		if e.PastorID != candidate.PastorID || e.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		if e.Overlaps(candidate) {
			return e, true
		}
	}
	return Availability{}, false
}

func SortAvailability(windows []Availability) {
	sort.SliceStable(windows, func(i, j int) bool {
		if windows[i].DayOfWeek != windows[j].DayOfWeek {
			return windows[i].DayOfWeek < windows[j].DayOfWeek
		}
		return windows[i].StartTime < windows[j].StartTime
	})
}
