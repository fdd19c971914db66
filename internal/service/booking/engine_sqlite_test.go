package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/availability"
	"pastorcare/backend/internal/store/sqlite"
)

func newSQLiteEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := sqlite.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close(db) })

	avail := availability.NewService(sqlite.NewAvailabilityRepo(db), nil)
	if _, err := avail.Create(context.Background(), pastor, availability.CreateInput{
		PastorID:  "p1",
		DayOfWeek: domain.Monday,
		StartTime: 9 * 60,
		EndTime:   12 * 60,
	}); err != nil {
		t.Fatalf("create availability: %v", err)
	}

	return NewEngine(sqlite.NewAppointmentRepo(db), avail, WithClock(func() time.Time { return sundayNight }))
}

func TestEngineSQLite_BookingLifecycle(t *testing.T) {
	e := newSQLiteEngine(t)
	ctx := context.Background()

	in := validRequest()
	in.Time = 8 * 60
	if _, err := e.RequestAppointment(ctx, member, in); !errors.Is(err, domain.ErrOutsideAvailability) {
		t.Fatalf("err = %v, want %v", err, domain.ErrOutsideAvailability)
	}

	appt, err := e.RequestAppointment(ctx, member, validRequest())
	if err != nil {
		t.Fatalf("RequestAppointment error: %v", err)
	}
	if appt.Status != domain.StatusPending {
		t.Fatalf("status = %v, want PENDING", appt.Status)
	}

	other := domain.Actor{ID: "m2", Role: domain.RoleMember}
	if _, err := e.RequestAppointment(ctx, other, validRequest()); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("err = %v, want %v", err, domain.ErrSlotTaken)
	}

	confirmed, err := e.Confirm(ctx, pastor, appt.ID, "Office A", "")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed || confirmed.Location != "Office A" {
		t.Fatalf("confirmed = %+v", confirmed)
	}

	upcoming, err := e.UpcomingConfirmed(ctx, pastor, ScopePastor, "")
	if err != nil {
		t.Fatalf("UpcomingConfirmed error: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != appt.ID {
		t.Fatalf("upcoming = %+v", upcoming)
	}

	if _, err := e.Cancel(ctx, member, appt.ID, "sick"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if _, err := e.Confirm(ctx, pastor, appt.ID, "Office A", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidTransition)
	}

	// The cancelled slot is free again.
	if _, err := e.RequestAppointment(ctx, other, validRequest()); err != nil {
		t.Fatalf("rebook error: %v", err)
	}

	history, err := e.History(ctx, member, appt.ID)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history entries = %d, want 3", len(history))
	}
	if history[2].ToStatus != domain.StatusCancelled || history[2].Reason != "sick" {
		t.Fatalf("last change = %+v", history[2])
	}
}

func TestEngineSQLite_ConcurrentRequestsBookOnce(t *testing.T) {
	e := newSQLiteEngine(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		taken     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := domain.Actor{ID: fmt.Sprintf("m%d", i), Role: domain.RoleMember}
			_, err := e.RequestAppointment(context.Background(), actor, validRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 || taken != workers-1 {
		t.Fatalf("succeeded = %d, taken = %d", succeeded, taken)
	}
}
