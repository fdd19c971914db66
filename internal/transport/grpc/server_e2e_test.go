package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/directory"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/availability"
	"pastorcare/backend/internal/service/booking"
	"pastorcare/backend/internal/store/sqlite"
)

// Sunday 2026-01-04 23:00 UTC.
var sundayNight = time.Date(2026, 1, 4, 23, 0, 0, 0, time.UTC)

type testClient struct {
	*BookingClient
	conn   *grpc.ClientConn
	tokens map[string]string
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	db, err := sqlite.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close(db) })

	now := func() time.Time { return sundayNight }
	avail := availability.NewService(sqlite.NewAvailabilityRepo(db), nil)
	engine := booking.NewEngine(sqlite.NewAppointmentRepo(db), avail,
		booking.WithDirectory(directory.NewStatic([]directory.Pastor{{ID: "p1", DisplayName: "Pastor John"}})),
		booking.WithClock(now),
	)
	v := auth.NewVerifier("test-secret", "pastorcare")
	srv, _ := NewServer(NewBookingServer(engine, avail, nil, WithClock(now)), v, 5*time.Second, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	tokens := map[string]string{}
	for _, a := range []domain.Actor{
		{ID: "p1", Role: domain.RolePastor},
		{ID: "m1", Role: domain.RoleMember},
		{ID: "m2", Role: domain.RoleMember},
	} {
		tok, err := v.Issue(a, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		tokens[a.ID] = tok
	}
	return &testClient{BookingClient: NewBookingClient(conn), conn: conn, tokens: tokens}
}

func (c *testClient) as(actorID string, kv ...string) context.Context {
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+c.tokens[actorID])
	if len(kv) > 0 {
		ctx = metadata.AppendToOutgoingContext(ctx, kv...)
	}
	return ctx
}

func TestBookingService_EndToEnd(t *testing.T) {
	c := newTestClient(t)

	window, err := c.CreateAvailability(c.as("p1"), &CreateAvailabilityRequest{
		PastorID: "p1", DayOfWeek: "MON", StartTime: "09:00", EndTime: "12:00",
	})
	if err != nil {
		t.Fatalf("CreateAvailability: %v", err)
	}
	if window.Availability.ID == "" || !window.Availability.IsActive {
		t.Fatalf("availability = %+v", window.Availability)
	}

	req := &RequestAppointmentRequest{
		PastorID: "p1", Subject: "Prayer", RequestedDate: "2026-01-05", RequestedTime: "10:00",
	}
	first, err := c.RequestAppointment(c.as("m1", "idempotency-key", "req-1"), req)
	if err != nil {
		t.Fatalf("RequestAppointment: %v", err)
	}
	again, err := c.RequestAppointment(c.as("m1", "idempotency-key", "req-1"), req)
	if err != nil {
		t.Fatalf("RequestAppointment replay: %v", err)
	}
	if again.Appointment.ID != first.Appointment.ID {
		t.Fatalf("replay id = %s, want %s", again.Appointment.ID, first.Appointment.ID)
	}

	_, err = c.RequestAppointment(c.as("m2"), req)
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("second booking code = %v, want %v", status.Code(err), codes.AlreadyExists)
	}

	_, err = c.RequestAppointment(c.as("m2"), &RequestAppointmentRequest{
		PastorID: "p1", Subject: "Late", RequestedDate: "2026-01-05", RequestedTime: "12:00",
	})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("outside window code = %v, want %v", status.Code(err), codes.FailedPrecondition)
	}

	_, err = c.ConfirmAppointment(c.as("m1"), &ConfirmAppointmentRequest{AppointmentID: first.Appointment.ID, Location: "Office"})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("member confirm code = %v, want %v", status.Code(err), codes.PermissionDenied)
	}

	confirmed, err := c.ConfirmAppointment(c.as("p1"), &ConfirmAppointmentRequest{
		AppointmentID: first.Appointment.ID, Location: "Church office", MessageToMember: "See you",
	})
	if err != nil {
		t.Fatalf("ConfirmAppointment: %v", err)
	}
	if confirmed.Appointment.Status != string(domain.StatusConfirmed) || confirmed.Appointment.Location != "Church office" {
		t.Fatalf("confirmed = %+v", confirmed.Appointment)
	}

	next, err := c.NextUpcoming(c.as("p1"), &NextUpcomingRequest{})
	if err != nil {
		t.Fatalf("NextUpcoming: %v", err)
	}
	if next.Appointment == nil || next.Appointment.ID != first.Appointment.ID {
		t.Fatalf("next = %+v, want %s", next.Appointment, first.Appointment.ID)
	}
	if next.Remaining == nil || next.Remaining.Days != 0 || next.Remaining.Hours != 11 || next.Remaining.Minutes != 0 {
		t.Fatalf("remaining = %+v, want 0d 11h 0m", next.Remaining)
	}

	listed, err := c.ListAppointments(c.as("m2"), &ListAppointmentsRequest{})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(listed.Appointments) != 0 {
		t.Fatalf("m2 sees %d appointments, want 0", len(listed.Appointments))
	}

	cancelled, err := c.CancelAppointment(c.as("m1"), &CancelAppointmentRequest{AppointmentID: first.Appointment.ID, Reason: "sick"})
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if cancelled.Appointment.Status != string(domain.StatusCancelled) || cancelled.Appointment.CancelledBy != "m1" {
		t.Fatalf("cancelled = %+v", cancelled.Appointment)
	}

	_, err = c.ConfirmAppointment(c.as("p1"), &ConfirmAppointmentRequest{AppointmentID: first.Appointment.ID, Location: "Office"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("confirm cancelled code = %v, want %v", status.Code(err), codes.FailedPrecondition)
	}

	if _, err := c.DeleteAppointment(c.as("p1"), &DeleteAppointmentRequest{AppointmentID: first.Appointment.ID}); err != nil {
		t.Fatalf("DeleteAppointment: %v", err)
	}
	_, err = c.GetAppointment(c.as("p1"), &GetAppointmentRequest{AppointmentID: first.Appointment.ID})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("get deleted code = %v, want %v", status.Code(err), codes.NotFound)
	}

	windows, err := c.ListAvailability(c.as("m1"), &ListAvailabilityRequest{PastorID: "p1"})
	if err != nil {
		t.Fatalf("ListAvailability: %v", err)
	}
	if len(windows.Availability) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows.Availability))
	}
	ref := &AvailabilityRef{PastorID: "p1", AvailabilityID: window.Availability.ID}
	if _, err := c.DeactivateAvailability(c.as("p1"), ref); err != nil {
		t.Fatalf("DeactivateAvailability: %v", err)
	}
	if _, err := c.DeleteAvailability(c.as("p1"), ref); err != nil {
		t.Fatalf("DeleteAvailability: %v", err)
	}
}

func TestBookingService_RequiresToken(t *testing.T) {
	c := newTestClient(t)
	_, err := c.ListAppointments(context.Background(), &ListAppointmentsRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want %v", status.Code(err), codes.Unauthenticated)
	}
}

func TestHealthService_Serving(t *testing.T) {
	c := newTestClient(t)
	resp, err := healthpb.NewHealthClient(c.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: bookingServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v, want SERVING", resp.GetStatus())
	}
}
