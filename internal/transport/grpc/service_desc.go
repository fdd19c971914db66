package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const bookingServiceName = "pastorcare.v1.BookingService"

// BookingService is the server API of pastorcare.v1.BookingService.
type BookingService interface {
	RequestAppointment(context.Context, *RequestAppointmentRequest) (*AppointmentReply, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*AppointmentReply, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsReply, error)
	ConfirmAppointment(context.Context, *ConfirmAppointmentRequest) (*AppointmentReply, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*AppointmentReply, error)
	DeleteAppointment(context.Context, *DeleteAppointmentRequest) (*Empty, error)
	NextUpcoming(context.Context, *NextUpcomingRequest) (*NextUpcomingReply, error)
	CreateAvailability(context.Context, *CreateAvailabilityRequest) (*AvailabilityReply, error)
	UpdateAvailability(context.Context, *UpdateAvailabilityRequest) (*AvailabilityReply, error)
	DeactivateAvailability(context.Context, *AvailabilityRef) (*Empty, error)
	DeleteAvailability(context.Context, *AvailabilityRef) (*Empty, error)
	ListAvailability(context.Context, *ListAvailabilityRequest) (*ListAvailabilityReply, error)
}

func fullMethod(method string) string {
	return "/" + bookingServiceName + "/" + method
}

func unaryMethod[Req, Resp any](method string, call func(BookingService, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingService), ctx, req.(*Req))
			})
		},
	}
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("RequestAppointment", BookingService.RequestAppointment),
		unaryMethod("GetAppointment", BookingService.GetAppointment),
		unaryMethod("ListAppointments", BookingService.ListAppointments),
		unaryMethod("ConfirmAppointment", BookingService.ConfirmAppointment),
		unaryMethod("CancelAppointment", BookingService.CancelAppointment),
		unaryMethod("DeleteAppointment", BookingService.DeleteAppointment),
		unaryMethod("NextUpcoming", BookingService.NextUpcoming),
		unaryMethod("CreateAvailability", BookingService.CreateAvailability),
		unaryMethod("UpdateAvailability", BookingService.UpdateAvailability),
		unaryMethod("DeactivateAvailability", BookingService.DeactivateAvailability),
		unaryMethod("DeleteAvailability", BookingService.DeleteAvailability),
		unaryMethod("ListAvailability", BookingService.ListAvailability),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pastorcare/v1/booking",
}

func RegisterBookingService(s grpc.ServiceRegistrar, srv BookingService) {
	s.RegisterService(&bookingServiceDesc, srv)
}

// BookingClient calls BookingService with the JSON codec.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *BookingClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) RequestAppointment(ctx context.Context, in *RequestAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "RequestAppointment", in, opts)
}

func (c *BookingClient) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "GetAppointment", in, opts)
}

func (c *BookingClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsReply, error) {
	return invoke[ListAppointmentsReply](ctx, c, "ListAppointments", in, opts)
}

func (c *BookingClient) ConfirmAppointment(ctx context.Context, in *ConfirmAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "ConfirmAppointment", in, opts)
}

func (c *BookingClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*AppointmentReply, error) {
	return invoke[AppointmentReply](ctx, c, "CancelAppointment", in, opts)
}

func (c *BookingClient) DeleteAppointment(ctx context.Context, in *DeleteAppointmentRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteAppointment", in, opts)
}

func (c *BookingClient) NextUpcoming(ctx context.Context, in *NextUpcomingRequest, opts ...grpc.CallOption) (*NextUpcomingReply, error) {
	return invoke[NextUpcomingReply](ctx, c, "NextUpcoming", in, opts)
}

func (c *BookingClient) CreateAvailability(ctx context.Context, in *CreateAvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityReply, error) {
	return invoke[AvailabilityReply](ctx, c, "CreateAvailability", in, opts)
}

func (c *BookingClient) UpdateAvailability(ctx context.Context, in *UpdateAvailabilityRequest, opts ...grpc.CallOption) (*AvailabilityReply, error) {
	return invoke[AvailabilityReply](ctx, c, "UpdateAvailability", in, opts)
}

func (c *BookingClient) DeactivateAvailability(ctx context.Context, in *AvailabilityRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeactivateAvailability", in, opts)
}

func (c *BookingClient) DeleteAvailability(ctx context.Context, in *AvailabilityRef, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "DeleteAvailability", in, opts)
}

func (c *BookingClient) ListAvailability(ctx context.Context, in *ListAvailabilityRequest, opts ...grpc.CallOption) (*ListAvailabilityReply, error) {
	return invoke[ListAvailabilityReply](ctx, c, "ListAvailability", in, opts)
}
