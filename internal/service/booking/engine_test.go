package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pastorcare/backend/internal/directory"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/store"
)

type fakeAppts struct {
	createFn  func(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error)
	getFn     func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listFn    func(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error)
	updateFn  func(ctx context.Context, appt domain.Appointment, change *domain.StatusChange) (domain.Appointment, error)
	deleteFn  func(ctx context.Context, id uuid.UUID, change domain.StatusChange) error
	historyFn func(ctx context.Context, id uuid.UUID) ([]domain.StatusChange, error)
}

func (f *fakeAppts) CreateAppointment(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.createFn(ctx, appt, change)
}

func (f *fakeAppts) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeAppts) ListAppointments(ctx context.Context, flt store.AppointmentFilter) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("ListAppointments not configured")
	}
	return f.listFn(ctx, flt)
}

func (f *fakeAppts) UpdateAppointment(ctx context.Context, appt domain.Appointment, change *domain.StatusChange) (domain.Appointment, error) {
	if f.updateFn == nil {
		panic("UpdateAppointment not configured")
	}
	return f.updateFn(ctx, appt, change)
}

func (f *fakeAppts) DeleteAppointment(ctx context.Context, id uuid.UUID, change domain.StatusChange) error {
	if f.deleteFn == nil {
		panic("DeleteAppointment not configured")
	}
	return f.deleteFn(ctx, id, change)
}

func (f *fakeAppts) ListStatusChanges(ctx context.Context, id uuid.UUID) ([]domain.StatusChange, error) {
	if f.historyFn == nil {
		panic("ListStatusChanges not configured")
	}
	return f.historyFn(ctx, id)
}

type windowsFunc func(ctx context.Context, pastorID string, day domain.Weekday) ([]domain.Availability, error)

func (f windowsFunc) Windows(ctx context.Context, pastorID string, day domain.Weekday) ([]domain.Availability, error) {
	return f(ctx, pastorID, day)
}

type notifierFunc func(ctx context.Context, ev domain.AppointmentEvent) error

func (f notifierFunc) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	return f(ctx, ev)
}

var (
	pastor      = domain.Actor{ID: "p1", Role: domain.RolePastor}
	otherPastor = domain.Actor{ID: "p2", Role: domain.RolePastor}
	member      = domain.Actor{ID: "m1", Role: domain.RoleMember}
	admin       = domain.Actor{ID: "a1", Role: domain.RoleAdmin}

	// Sunday 2026-01-04 23:00 UTC; the next day is a Monday.
	sundayNight = time.Date(2026, 1, 4, 23, 0, 0, 0, time.UTC)
	nextMonday  = domain.Date{Year: 2026, Month: time.January, Day: 5}
)

func mondayMorning() windowsFunc {
	return func(ctx context.Context, pastorID string, day domain.Weekday) ([]domain.Availability, error) {
		if day != domain.Monday {
			return nil, nil
		}
		return []domain.Availability{{
			PastorID: pastorID, DayOfWeek: domain.Monday, StartTime: 9 * 60, EndTime: 12 * 60, IsActive: true,
		}}, nil
	}
}

func newTestEngine(appts *fakeAppts, opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return sundayNight })}, opts...)
	return NewEngine(appts, mondayMorning(), opts...)
}

func emptyList(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
	return nil, nil
}

func validRequest() RequestInput {
	return RequestInput{PastorID: "p1", Subject: "counsel", Date: nextMonday, Time: 10*60 + 30}
}

func TestRequestAppointment_CreatesPending(t *testing.T) {
	var gotChange domain.StatusChange
	appts := &fakeAppts{
		listFn: emptyList,
		createFn: func(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
			gotChange = change
			appt.ID = uuid.New()
			appt.Version = 1
			return appt, nil
		},
	}
	var events []domain.AppointmentEvent
	e := newTestEngine(appts, WithNotifier(notifierFunc(func(ctx context.Context, ev domain.AppointmentEvent) error {
		events = append(events, ev)
		return nil
	})))

	a, err := e.RequestAppointment(context.Background(), member, validRequest())
	if err != nil {
		t.Fatalf("RequestAppointment error: %v", err)
	}
	if a.Status != domain.StatusPending || a.MemberID != "m1" || a.PastorID != "p1" {
		t.Fatalf("appointment = %+v", a)
	}
	if gotChange.Event != domain.EventRequested || gotChange.ActorID != "m1" {
		t.Fatalf("change = %+v", gotChange)
	}
	if len(events) != 1 || events[0].Type != domain.EventRequested {
		t.Fatalf("events = %+v", events)
	}
}

func TestRequestAppointment_Validation(t *testing.T) {
	e := newTestEngine(&fakeAppts{})

	cases := []struct {
		name string
		mod  func(*RequestInput)
		want string
	}{
		{"missing pastor", func(in *RequestInput) { in.PastorID = " " }, "pastor_id is required"},
		{"missing subject", func(in *RequestInput) { in.Subject = "" }, "subject is required"},
		{"missing date", func(in *RequestInput) { in.Date = domain.Date{} }, "date is required"},
		{"past date", func(in *RequestInput) { in.Date = nextMonday.AddDays(-7) }, "requested time is in the past"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRequest()
			tc.mod(&in)
			_, err := e.RequestAppointment(context.Background(), member, in)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T (%v), want *domain.ValidationError", err, err)
			}
			if vErr.Error() != tc.want {
				t.Fatalf("error = %q, want %q", vErr.Error(), tc.want)
			}
		})
	}
}

func TestRequestAppointment_SameDayEarlierTimeIsPast(t *testing.T) {
	appts := &fakeAppts{}
	e := NewEngine(appts, mondayMorning(), WithClock(func() time.Time {
		return time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC)
	}))
	_, err := e.RequestAppointment(context.Background(), member, validRequest())
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRequestAppointment_OutsideAvailability(t *testing.T) {
	e := newTestEngine(&fakeAppts{})
	in := validRequest()
	in.Time = 8 * 60
	if _, err := e.RequestAppointment(context.Background(), member, in); !errors.Is(err, domain.ErrOutsideAvailability) {
		t.Fatalf("err = %v, want %v", err, domain.ErrOutsideAvailability)
	}

	in.Time = 12 * 60
	if _, err := e.RequestAppointment(context.Background(), member, in); !errors.Is(err, domain.ErrOutsideAvailability) {
		t.Fatalf("end of window: err = %v, want %v", err, domain.ErrOutsideAvailability)
	}
}

func TestRequestAppointment_Forbidden(t *testing.T) {
	e := newTestEngine(&fakeAppts{})
	if _, err := e.RequestAppointment(context.Background(), pastor, validRequest()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}
}

func TestRequestAppointment_UnknownPastor(t *testing.T) {
	e := newTestEngine(&fakeAppts{}, WithDirectory(directory.NewStatic([]directory.Pastor{{ID: "p9"}})))
	_, err := e.RequestAppointment(context.Background(), member, validRequest())
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRequestAppointment_SlotTaken(t *testing.T) {
	taken := domain.Appointment{ID: uuid.New(), PastorID: "p1", MemberID: "m2", RequestedDate: nextMonday, RequestedTime: 10*60 + 30, Status: domain.StatusPending}

	t.Run("pre-check", func(t *testing.T) {
		e := newTestEngine(&fakeAppts{
			listFn: func(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
				return []domain.Appointment{taken}, nil
			},
		})
		if _, err := e.RequestAppointment(context.Background(), member, validRequest()); !errors.Is(err, domain.ErrSlotTaken) {
			t.Fatalf("err = %v, want %v", err, domain.ErrSlotTaken)
		}
	})

	t.Run("store arbiter", func(t *testing.T) {
		e := newTestEngine(&fakeAppts{
			listFn: emptyList,
			createFn: func(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
				return domain.Appointment{}, store.ErrSlotTaken
			},
		})
		if _, err := e.RequestAppointment(context.Background(), member, validRequest()); !errors.Is(err, domain.ErrSlotTaken) {
			t.Fatalf("err = %v, want %v", err, domain.ErrSlotTaken)
		}
	})
}

func TestRequestAppointment_IdempotencyKey(t *testing.T) {
	var ids []uuid.UUID
	stored := map[uuid.UUID]domain.Appointment{}
	appts := &fakeAppts{
		listFn: emptyList,
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			a, ok := stored[id]
			if !ok {
				return domain.Appointment{}, store.ErrNotFound
			}
			return a, nil
		},
		createFn: func(ctx context.Context, appt domain.Appointment, change domain.StatusChange) (domain.Appointment, error) {
			ids = append(ids, appt.ID)
			stored[appt.ID] = appt
			return appt, nil
		},
	}
	e := newTestEngine(appts)

	in := validRequest()
	in.IdempotencyKey = "k-1"
	first, err := e.RequestAppointment(context.Background(), member, in)
	if err != nil {
		t.Fatalf("first request error: %v", err)
	}
	second, err := e.RequestAppointment(context.Background(), member, in)
	if err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if first.ID != second.ID || len(ids) != 1 {
		t.Fatalf("retry created a second record: ids = %v", ids)
	}

	in.Subject = "something else"
	if _, err := e.RequestAppointment(context.Background(), member, in); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want %v", err, domain.ErrIdempotencyConflict)
	}
}

func pendingAppointment() domain.Appointment {
	return domain.Appointment{
		ID:            uuid.MustParse("00000000-0000-0000-0000-000000000101"),
		PastorID:      "p1",
		MemberID:      "m1",
		Subject:       "counsel",
		RequestedDate: nextMonday,
		RequestedTime: 10*60 + 30,
		Status:        domain.StatusPending,
		Version:       1,
	}
}

func getReturning(a domain.Appointment) func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
		return a, nil
	}
}

func TestConfirm_RequiresLocationWithoutWriting(t *testing.T) {
	e := newTestEngine(&fakeAppts{})
	_, err := e.Confirm(context.Background(), pastor, pendingAppointment().ID, "   ", "")
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestConfirm(t *testing.T) {
	var change *domain.StatusChange
	appts := &fakeAppts{
		getFn: getReturning(pendingAppointment()),
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			change = c
			appt.Version++
			return appt, nil
		},
	}
	e := newTestEngine(appts)

	if _, err := e.Confirm(context.Background(), otherPastor, pendingAppointment().ID, "Office A", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}

	out, err := e.Confirm(context.Background(), pastor, pendingAppointment().ID, " Office A ", "See you")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if out.Status != domain.StatusConfirmed || out.Location != "Office A" || out.MessageToMember != "See you" {
		t.Fatalf("confirmed = %+v", out)
	}
	if out.ConfirmedAt == nil || out.Version != 2 {
		t.Fatalf("confirmed_at = %v, version = %d", out.ConfirmedAt, out.Version)
	}
	if change == nil || change.FromStatus != domain.StatusPending || change.ToStatus != domain.StatusConfirmed {
		t.Fatalf("change = %+v", change)
	}
}

func TestConfirm_RetryWithSameParametersReturnsRecord(t *testing.T) {
	confirmed := pendingAppointment()
	confirmed.Status = domain.StatusConfirmed
	confirmed.Location = "Office A"
	e := newTestEngine(&fakeAppts{getFn: getReturning(confirmed)})

	out, err := e.Confirm(context.Background(), pastor, confirmed.ID, "Office A", "")
	if err != nil {
		t.Fatalf("Confirm retry error: %v", err)
	}
	if out.ID != confirmed.ID || out.Status != domain.StatusConfirmed {
		t.Fatalf("out = %+v", out)
	}

	if _, err := e.Confirm(context.Background(), pastor, confirmed.ID, "Office B", ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidTransition)
	}
}

func TestConfirm_CancelledIsInvalidTransition(t *testing.T) {
	cancelled := pendingAppointment()
	cancelled.Status = domain.StatusCancelled
	e := newTestEngine(&fakeAppts{getFn: getReturning(cancelled)})

	_, err := e.Confirm(context.Background(), pastor, cancelled.ID, "Office A", "")
	var tErr *domain.TransitionError
	if !errors.As(err, &tErr) || tErr.From != domain.StatusCancelled {
		t.Fatalf("err = %v, want transition error from CANCELLED", err)
	}
}

func TestCancel(t *testing.T) {
	confirmed := pendingAppointment()
	confirmed.Status = domain.StatusConfirmed
	confirmed.Location = "Office A"
	appts := &fakeAppts{
		getFn: getReturning(confirmed),
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			return appt, nil
		},
	}
	e := newTestEngine(appts)

	out, err := e.Cancel(context.Background(), member, confirmed.ID, "travelling")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if out.Status != domain.StatusCancelled || out.CancelledBy != "m1" || out.CancelReason != "travelling" {
		t.Fatalf("cancelled = %+v", out)
	}

	if _, err := e.Cancel(context.Background(), domain.Actor{ID: "m2", Role: domain.RoleMember}, confirmed.ID, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	cancelled := pendingAppointment()
	cancelled.Status = domain.StatusCancelled
	e := newTestEngine(&fakeAppts{getFn: getReturning(cancelled)})

	if _, err := e.Cancel(context.Background(), pastor, cancelled.ID, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidTransition)
	}
}

func TestTransition_RetriesOnceAfterStaleVersion(t *testing.T) {
	gets, updates := 0, 0
	appts := &fakeAppts{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			gets++
			a := pendingAppointment()
			a.Version = int64(gets)
			return a, nil
		},
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			updates++
			if updates == 1 {
				return domain.Appointment{}, store.ErrStaleVersion
			}
			return appt, nil
		},
	}
	e := newTestEngine(appts)

	out, err := e.Confirm(context.Background(), pastor, pendingAppointment().ID, "Office A", "")
	if err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if gets != 2 || updates != 2 {
		t.Fatalf("gets = %d, updates = %d, want 2 and 2", gets, updates)
	}
	if out.Version != 2 {
		t.Fatalf("retry must work on the re-fetched copy, version = %d", out.Version)
	}
}

func TestTransition_SecondLossSurfacesConcurrentModification(t *testing.T) {
	appts := &fakeAppts{
		getFn: getReturning(pendingAppointment()),
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrStaleVersion
		},
	}
	e := newTestEngine(appts)

	if _, err := e.Cancel(context.Background(), pastor, pendingAppointment().ID, ""); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("err = %v, want %v", err, domain.ErrConcurrentModification)
	}
}

func TestUpdateRequest(t *testing.T) {
	appts := &fakeAppts{
		getFn: getReturning(pendingAppointment()),
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			if c.Event != domain.EventUpdated {
				t.Fatalf("event = %v, want %v", c.Event, domain.EventUpdated)
			}
			return appt, nil
		},
	}
	e := newTestEngine(appts)

	notes := "bring documents"
	out, err := e.UpdateRequest(context.Background(), member, pendingAppointment().ID, UpdateRequestInput{Notes: &notes})
	if err != nil {
		t.Fatalf("UpdateRequest error: %v", err)
	}
	if out.Notes != notes || out.Subject != "counsel" {
		t.Fatalf("out = %+v", out)
	}

	if _, err := e.UpdateRequest(context.Background(), pastor, pendingAppointment().ID, UpdateRequestInput{Notes: &notes}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}
}

func TestUpdateRequest_OnlyWhilePending(t *testing.T) {
	confirmed := pendingAppointment()
	confirmed.Status = domain.StatusConfirmed
	e := newTestEngine(&fakeAppts{getFn: getReturning(confirmed)})

	subject := "new"
	if _, err := e.UpdateRequest(context.Background(), member, confirmed.ID, UpdateRequestInput{Subject: &subject}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want %v", err, domain.ErrInvalidTransition)
	}
}

func TestDelete(t *testing.T) {
	deleted := false
	appts := &fakeAppts{
		getFn: getReturning(pendingAppointment()),
		deleteFn: func(ctx context.Context, id uuid.UUID, c domain.StatusChange) error {
			deleted = true
			if c.Event != domain.EventDeleted || c.ActorID != "a1" {
				t.Fatalf("change = %+v", c)
			}
			return nil
		},
	}
	e := newTestEngine(appts)

	if err := e.Delete(context.Background(), member, pendingAppointment().ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}
	if deleted {
		t.Fatalf("forbidden delete reached the store")
	}
	if err := e.Delete(context.Background(), admin, pendingAppointment().ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected store delete")
	}
}

func TestGetAppointment_HidesForeignAppointments(t *testing.T) {
	e := newTestEngine(&fakeAppts{getFn: getReturning(pendingAppointment())})
	stranger := domain.Actor{ID: "m9", Role: domain.RoleMember}
	if _, err := e.GetAppointment(context.Background(), stranger, pendingAppointment().ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, domain.ErrNotFound)
	}
	if _, err := e.GetAppointment(context.Background(), member, pendingAppointment().ID); err != nil {
		t.Fatalf("GetAppointment error: %v", err)
	}
}

func TestListAppointments_Visibility(t *testing.T) {
	var got store.AppointmentFilter
	appts := &fakeAppts{
		listFn: func(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
			got = f
			return nil, nil
		},
	}
	e := newTestEngine(appts)

	if _, err := e.ListAppointments(context.Background(), member, ListFilter{PastorID: "p1", Status: domain.StatusPending}); err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if got.Involving != "m1" || got.PastorID != "p1" || len(got.Statuses) != 1 {
		t.Fatalf("filter = %+v", got)
	}

	if _, err := e.ListAppointments(context.Background(), admin, ListFilter{}); err != nil {
		t.Fatalf("ListAppointments error: %v", err)
	}
	if got.Involving != "" {
		t.Fatalf("admin filter = %+v", got)
	}
}

func TestUpcomingConfirmed_Scopes(t *testing.T) {
	var got store.AppointmentFilter
	appts := &fakeAppts{
		listFn: func(ctx context.Context, f store.AppointmentFilter) ([]domain.Appointment, error) {
			got = f
			return nil, nil
		},
	}
	e := newTestEngine(appts)
	ctx := context.Background()

	if _, err := e.UpcomingConfirmed(ctx, pastor, ScopePastor, ""); err != nil {
		t.Fatalf("pastor scope error: %v", err)
	}
	if got.PastorID != "p1" || got.FromDate != domain.DateOf(sundayNight) {
		t.Fatalf("filter = %+v", got)
	}
	if len(got.Statuses) != 1 || got.Statuses[0] != domain.StatusConfirmed {
		t.Fatalf("statuses = %v", got.Statuses)
	}

	if _, err := e.UpcomingConfirmed(ctx, pastor, ScopePastor, "p2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}

	if _, err := e.UpcomingConfirmed(ctx, member, ScopePastor, "p1"); err != nil {
		t.Fatalf("member pastor scope error: %v", err)
	}
	if got.PastorID != "p1" || got.MemberID != "m1" {
		t.Fatalf("filter = %+v", got)
	}

	if _, err := e.UpcomingConfirmed(ctx, member, ScopeGlobal, ""); err != nil {
		t.Fatalf("global scope error: %v", err)
	}
	if got.Involving != "m1" || got.PastorID != "" {
		t.Fatalf("filter = %+v", got)
	}

	if _, err := e.UpcomingConfirmed(ctx, admin, ScopeGlobal, ""); err != nil {
		t.Fatalf("admin global scope error: %v", err)
	}
	if got.Involving != "" {
		t.Fatalf("filter = %+v", got)
	}
}

func TestParseScope(t *testing.T) {
	for in, want := range map[string]Scope{"": ScopePastor, "PASTOR": ScopePastor, "global": ScopeGlobal} {
		got, err := ParseScope(in)
		if err != nil || got != want {
			t.Fatalf("ParseScope(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseScope("everyone"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNotifierFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	appts := &fakeAppts{
		getFn: getReturning(pendingAppointment()),
		updateFn: func(ctx context.Context, appt domain.Appointment, c *domain.StatusChange) (domain.Appointment, error) {
			return appt, nil
		},
	}
	e := newTestEngine(appts,
		WithLogger(zap.New(core)),
		WithNotifier(notifierFunc(func(ctx context.Context, ev domain.AppointmentEvent) error {
			return errors.New("broker down")
		})),
	)

	if _, err := e.Confirm(context.Background(), pastor, pendingAppointment().ID, "Office A", ""); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if n := logs.FilterMessage("notification failed").Len(); n != 1 {
		t.Fatalf("warnings = %d, want 1", n)
	}
}

func TestStoreUnavailableIsTyped(t *testing.T) {
	e := newTestEngine(&fakeAppts{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrUnavailable
		},
	})
	if _, err := e.GetAppointment(context.Background(), admin, uuid.New()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want %v", err, domain.ErrStoreUnavailable)
	}
}

func TestStoreTimeoutBoundsCalls(t *testing.T) {
	e := newTestEngine(&fakeAppts{
		getFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("expected a deadline on store calls")
			}
			<-ctx.Done()
			return domain.Appointment{}, ctx.Err()
		},
	}, WithStoreTimeout(10*time.Millisecond))

	if _, err := e.GetAppointment(context.Background(), admin, uuid.New()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want %v", err, domain.ErrStoreUnavailable)
	}
}
