package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"pastorcare/backend/internal/auth"
	"pastorcare/backend/internal/domain"
	"pastorcare/backend/internal/service/availability"
	"pastorcare/backend/internal/service/booking"
	"pastorcare/backend/internal/service/countdown"
	"pastorcare/backend/internal/transport/errmap"
)

type bookingEngine interface {
	RequestAppointment(ctx context.Context, actor domain.Actor, in booking.RequestInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, actor domain.Actor, f booking.ListFilter) ([]domain.Appointment, error)
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, location, message string) (domain.Appointment, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (domain.Appointment, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	UpcomingConfirmed(ctx context.Context, actor domain.Actor, scope booking.Scope, pastorID string) ([]domain.Appointment, error)
	Location() *time.Location
}

type availabilityService interface {
	Create(ctx context.Context, actor domain.Actor, in availability.CreateInput) (domain.Availability, error)
	Update(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID, in availability.UpdateInput) (domain.Availability, error)
	Deactivate(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error
	Delete(ctx context.Context, actor domain.Actor, pastorID string, id uuid.UUID) error
	ListActive(ctx context.Context, pastorID string) ([]domain.Availability, error)
}

type BookingServer struct {
	booking bookingEngine
	avail   availabilityService
	now     func() time.Time
	retries int
	backoff time.Duration
	log     *zap.Logger
}

var _ BookingService = (*BookingServer)(nil)

type ServerOption func(*BookingServer)

// WithCountdownReads sets the read retry policy of NextUpcoming.
func WithCountdownReads(retries int, backoff time.Duration) ServerOption {
	return func(s *BookingServer) {
		s.retries = retries
		s.backoff = backoff
	}
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *BookingServer) {
		if now != nil {
			s.now = now
		}
	}
}

func NewBookingServer(b bookingEngine, a availabilityService, log *zap.Logger, opts ...ServerOption) *BookingServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &BookingServer{
		booking: b,
		avail:   a,
		now:     time.Now,
		retries: countdown.DefaultReadRetries,
		backoff: countdown.DefaultRetryBackoff,
		log:     log.With(zap.String("component", "grpc.booking")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer builds a gRPC server with BookingService and the standard
// health service registered.
func NewServer(srv *BookingServer, verifier *auth.Verifier, requestTimeout time.Duration, log *zap.Logger) (*grpc.Server, *health.Server) {
	if log == nil {
		log = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			DefaultRequestTimeout(requestTimeout),
			AccessLog(log.With(zap.String("component", "grpc.access"))),
			Authenticate(verifier),
		),
	)
	RegisterBookingService(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(bookingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// fail converts err into a status error, logging at a level that matches
// its class.
func (s *BookingServer) fail(log *zap.Logger, err error, fields ...zap.Field) error {
	cls := errmap.Classify(err)
	fields = append(fields, zap.Error(err), zap.String("code", cls.GRPCCode.String()))
	switch {
	case cls.Internal():
		log.Error("rpc failed", fields...)
	case cls.GRPCCode == codes.Unavailable:
		log.Warn("store unavailable", fields...)
	case cls.GRPCCode == codes.InvalidArgument:
		log.Warn("invalid request", fields...)
	default:
		log.Info("request rejected", fields...)
	}
	return status.Error(cls.GRPCCode, cls.Message)
}

func actorFrom(ctx context.Context) (domain.Actor, error) {
	actor, ok := auth.ActorFrom(ctx)
	if !ok || !actor.Valid() {
		return domain.Actor{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return actor, nil
}

func parseUUID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, field+" must be a UUID")
	}
	return id, nil
}

func (s *BookingServer) RequestAppointment(ctx context.Context, req *RequestAppointmentRequest) (*AppointmentReply, error) {
	log := s.log.With(zap.String("rpc", "RequestAppointment"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	date, err := domain.ParseDate(req.RequestedDate)
	if err != nil {
		log.Warn("invalid request", zap.String("reason", "bad_date"), zap.String("member_id", actor.ID))
		return nil, status.Error(codes.InvalidArgument, "requested_date must be YYYY-MM-DD")
	}
	at, err := domain.ParseClock(req.RequestedTime)
	if err != nil {
		log.Warn("invalid request", zap.String("reason", "bad_time"), zap.String("member_id", actor.ID))
		return nil, status.Error(codes.InvalidArgument, "requested_time must be HH:MM")
	}

	appt, err := s.booking.RequestAppointment(ctx, actor, booking.RequestInput{
		PastorID:       req.PastorID,
		Subject:        req.Subject,
		Notes:          req.Notes,
		Date:           date,
		Time:           at,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.fail(log, err, zap.String("member_id", actor.ID), zap.String("pastor_id", req.PastorID))
	}
	return &AppointmentReply{Appointment: toWireAppointment(appt, s.booking.Location())}, nil
}

func (s *BookingServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentReply, error) {
	log := s.log.With(zap.String("rpc", "GetAppointment"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	appt, err := s.booking.GetAppointment(ctx, actor, id)
	if err != nil {
		return nil, s.fail(log, err, zap.String("appointment_id", id.String()))
	}
	return &AppointmentReply{Appointment: toWireAppointment(appt, s.booking.Location())}, nil
}

func (s *BookingServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsReply, error) {
	log := s.log.With(zap.String("rpc", "ListAppointments"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	filter := booking.ListFilter{PastorID: req.PastorID, MemberID: req.MemberID}
	if req.Status != "" {
		st, ok := domain.ParseStatus(req.Status)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "unknown status "+req.Status)
		}
		filter.Status = st
	}

	appts, err := s.booking.ListAppointments(ctx, actor, filter)
	if err != nil {
		return nil, s.fail(log, err, zap.String("actor_id", actor.ID))
	}
	out := make([]*Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, toWireAppointment(a, s.booking.Location()))
	}
	log.Debug("appointments listed", zap.String("actor_id", actor.ID), zap.Int("count", len(out)))
	return &ListAppointmentsReply{Appointments: out}, nil
}

func (s *BookingServer) ConfirmAppointment(ctx context.Context, req *ConfirmAppointmentRequest) (*AppointmentReply, error) {
	log := s.log.With(zap.String("rpc", "ConfirmAppointment"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	appt, err := s.booking.Confirm(ctx, actor, id, req.Location, req.MessageToMember)
	if err != nil {
		return nil, s.fail(log, err, zap.String("appointment_id", id.String()), zap.String("actor_id", actor.ID))
	}
	return &AppointmentReply{Appointment: toWireAppointment(appt, s.booking.Location())}, nil
}

func (s *BookingServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentReply, error) {
	log := s.log.With(zap.String("rpc", "CancelAppointment"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	appt, err := s.booking.Cancel(ctx, actor, id, req.Reason)
	if err != nil {
		return nil, s.fail(log, err, zap.String("appointment_id", id.String()), zap.String("actor_id", actor.ID))
	}
	return &AppointmentReply{Appointment: toWireAppointment(appt, s.booking.Location())}, nil
}

func (s *BookingServer) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*Empty, error) {
	log := s.log.With(zap.String("rpc", "DeleteAppointment"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("appointment_id", req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.booking.Delete(ctx, actor, id); err != nil {
		return nil, s.fail(log, err, zap.String("appointment_id", id.String()), zap.String("actor_id", actor.ID))
	}
	return &Empty{}, nil
}

func (s *BookingServer) NextUpcoming(ctx context.Context, req *NextUpcomingRequest) (*NextUpcomingReply, error) {
	log := s.log.With(zap.String("rpc", "NextUpcoming"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := booking.ParseScope(req.Scope)
	if err != nil {
		return nil, s.fail(log, err)
	}

	p := countdown.NewProjector(func(ctx context.Context) ([]domain.Appointment, error) {
		return s.booking.UpcomingConfirmed(ctx, actor, scope, req.PastorID)
	},
		countdown.WithLocation(s.booking.Location()),
		countdown.WithClock(s.now),
		countdown.WithRetries(s.retries, s.backoff),
		countdown.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrStoreUnavailable) }),
	)
	proj, err := p.Refresh(ctx)
	if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) {
		return nil, s.fail(log, err, zap.String("actor_id", actor.ID))
	}

	out := &NextUpcomingReply{Stale: proj.Stale, Remaining: toWireRemaining(proj.Remaining)}
	if proj.Appointment != nil {
		out.Appointment = toWireAppointment(*proj.Appointment, s.booking.Location())
	}
	return out, nil
}

func (s *BookingServer) CreateAvailability(ctx context.Context, req *CreateAvailabilityRequest) (*AvailabilityReply, error) {
	log := s.log.With(zap.String("rpc", "CreateAvailability"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	day, err := domain.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "day_of_week must be MON..SUN")
	}
	start, err := domain.ParseClock(req.StartTime)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start_time must be HH:MM")
	}
	end, err := domain.ParseClock(req.EndTime)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "end_time must be HH:MM")
	}

	w, err := s.avail.Create(ctx, actor, availability.CreateInput{
		PastorID:  req.PastorID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, s.fail(log, err, zap.String("pastor_id", req.PastorID))
	}
	return &AvailabilityReply{Availability: toWireAvailability(w)}, nil
}

func (s *BookingServer) UpdateAvailability(ctx context.Context, req *UpdateAvailabilityRequest) (*AvailabilityReply, error) {
	log := s.log.With(zap.String("rpc", "UpdateAvailability"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("availability_id", req.AvailabilityID)
	if err != nil {
		return nil, err
	}

	in := availability.UpdateInput{IsActive: req.IsActive}
	if req.DayOfWeek != nil {
		day, err := domain.ParseWeekday(*req.DayOfWeek)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "day_of_week must be MON..SUN")
		}
		in.DayOfWeek = &day
	}
	if req.StartTime != nil {
		c, err := domain.ParseClock(*req.StartTime)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "start_time must be HH:MM")
		}
		in.StartTime = &c
	}
	if req.EndTime != nil {
		c, err := domain.ParseClock(*req.EndTime)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "end_time must be HH:MM")
		}
		in.EndTime = &c
	}

	w, err := s.avail.Update(ctx, actor, req.PastorID, id, in)
	if err != nil {
		return nil, s.fail(log, err, zap.String("availability_id", id.String()))
	}
	return &AvailabilityReply{Availability: toWireAvailability(w)}, nil
}

func (s *BookingServer) DeactivateAvailability(ctx context.Context, req *AvailabilityRef) (*Empty, error) {
	log := s.log.With(zap.String("rpc", "DeactivateAvailability"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("availability_id", req.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if err := s.avail.Deactivate(ctx, actor, req.PastorID, id); err != nil {
		return nil, s.fail(log, err, zap.String("availability_id", id.String()))
	}
	return &Empty{}, nil
}

func (s *BookingServer) DeleteAvailability(ctx context.Context, req *AvailabilityRef) (*Empty, error) {
	log := s.log.With(zap.String("rpc", "DeleteAvailability"))
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseUUID("availability_id", req.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if err := s.avail.Delete(ctx, actor, req.PastorID, id); err != nil {
		return nil, s.fail(log, err, zap.String("availability_id", id.String()))
	}
	return &Empty{}, nil
}

func (s *BookingServer) ListAvailability(ctx context.Context, req *ListAvailabilityRequest) (*ListAvailabilityReply, error) {
	log := s.log.With(zap.String("rpc", "ListAvailability"))
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	windows, err := s.avail.ListActive(ctx, req.PastorID)
	if err != nil {
		return nil, s.fail(log, err, zap.String("pastor_id", req.PastorID))
	}
	out := make([]*Availability, 0, len(windows))
	for _, w := range windows {
		out = append(out, toWireAvailability(w))
	}
	return &ListAvailabilityReply{Availability: out}, nil
}
