package api

import (
	"context"
	"fmt"

	"courtbook/internal/auth"
	"courtbook/internal/domain"

	"google.golang.org/grpc"
)

const courtServiceName = "courtbook.v1.CourtService"

const (
	methodCreateBooking = "/" + courtServiceName + "/CreateBooking"
	methodTakenSlots    = "/" + courtServiceName + "/TakenSlots"
	methodListMine      = "/" + courtServiceName + "/ListMine"
	methodUpdateStatus  = "/" + courtServiceName + "/UpdateStatus"
)

type CreateBookingRequest struct {
	Date   string `json:"date"`
	Court  int    `json:"court"`
	Hour   int    `json:"hour"`
	UserID string `json:"user_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

type BookingReply struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Date   string `json:"date"`
	Court  int    `json:"court"`
	Hour   int    `json:"hour"`
}

type TakenSlotsRequest struct {
	Date string `json:"date"`
}

type SlotMessage struct {
	Court  int    `json:"court"`
	Hour   int    `json:"hour"`
	Status string `json:"status,omitempty"`
	Key    string `json:"key"`
}

type TakenSlotsReply struct {
	Date  string        `json:"date"`
	Slots []SlotMessage `json:"slots"`
}

type ListMineRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

type ListMineReply struct {
	Mine  []string      `json:"mine"`
	Items []SlotMessage `json:"items"`
}

type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CourtServiceServer is the gRPC surface of the ledger.
type CourtServiceServer interface {
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingReply, error)
	TakenSlots(context.Context, *TakenSlotsRequest) (*TakenSlotsReply, error)
	ListMine(context.Context, *ListMineRequest) (*ListMineReply, error)
	UpdateStatus(context.Context, *UpdateStatusRequest) (*BookingReply, error)
}

func unaryHandler[Req any](method string, call func(CourtServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CourtServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(CourtServiceServer), ctx, req.(*Req))
		})
	}
}

var courtServiceDesc = grpc.ServiceDesc{
	ServiceName: courtServiceName,
	HandlerType: (*CourtServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateBooking",
			Handler: unaryHandler(methodCreateBooking, func(s CourtServiceServer, ctx context.Context, in *CreateBookingRequest) (any, error) {
				return s.CreateBooking(ctx, in)
			}),
		},
		{
			MethodName: "TakenSlots",
			Handler: unaryHandler(methodTakenSlots, func(s CourtServiceServer, ctx context.Context, in *TakenSlotsRequest) (any, error) {
				return s.TakenSlots(ctx, in)
			}),
		},
		{
			MethodName: "ListMine",
			Handler: unaryHandler(methodListMine, func(s CourtServiceServer, ctx context.Context, in *ListMineRequest) (any, error) {
				return s.ListMine(ctx, in)
			}),
		},
		{
			MethodName: "UpdateStatus",
			Handler: unaryHandler(methodUpdateStatus, func(s CourtServiceServer, ctx context.Context, in *UpdateStatusRequest) (any, error) {
				return s.UpdateStatus(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courtbook/v1/court.proto",
}

func RegisterCourtServiceServer(s grpc.ServiceRegistrar, srv CourtServiceServer) {
	s.RegisterService(&courtServiceDesc, srv)
}

// courtService adapts the domain services to CourtServiceServer.
type courtService struct {
	svc Services
}

func newCourtService(svc Services) *courtService {
	return &courtService{svc: svc}
}

func (c *courtService) CreateBooking(ctx context.Context, in *CreateBookingRequest) (*BookingReply, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, grpcError(domain.ErrUnauthenticated)
	}

	userID := in.UserID
	if userID == "" {
		userID = id.UserID
	}
	if err := selfOrAdmin(id, userID); err != nil {
		return nil, grpcError(err)
	}

	booking, err := c.svc.Bookings.Create(ctx, domain.CreateBookingRequest{
		Date:   in.Date,
		Court:  in.Court,
		Hour:   in.Hour,
		UserID: userID,
		Note:   in.Note,
	})
	if err != nil {
		return nil, grpcError(err)
	}

	return &BookingReply{
		ID:     booking.ID,
		UserID: booking.UserID,
		Status: booking.Status.String(),
		Date:   booking.DateKey,
		Court:  booking.Court,
		Hour:   booking.Hour,
	}, nil
}

func (c *courtService) TakenSlots(ctx context.Context, in *TakenSlotsRequest) (*TakenSlotsReply, error) {
	slots, err := c.svc.Availability.TakenSlots(ctx, in.Date)
	if err != nil {
		return nil, grpcError(err)
	}

	reply := &TakenSlotsReply{Date: in.Date, Slots: make([]SlotMessage, 0, len(slots))}
	for _, slot := range slots {
		reply.Slots = append(reply.Slots, SlotMessage{
			Court:  slot.Court,
			Hour:   slot.Hour,
			Status: slot.Status.String(),
			Key:    slot.Key(),
		})
	}
	return reply, nil
}

func (c *courtService) ListMine(ctx context.Context, in *ListMineRequest) (*ListMineReply, error) {
	userID := in.UserID
	if userID == "" {
		if id, ok := auth.IdentityFrom(ctx); ok {
			userID = id.UserID
		}
	}

	bookings, err := c.svc.Bookings.ListByUser(ctx, userID, in.Date, true)
	if err != nil {
		return nil, grpcError(err)
	}

	reply := &ListMineReply{Mine: make([]string, 0, len(bookings)), Items: make([]SlotMessage, 0, len(bookings))}
	for _, b := range bookings {
		reply.Mine = append(reply.Mine, b.SlotKey())
		reply.Items = append(reply.Items, SlotMessage{Court: b.Court, Hour: b.Hour, Key: b.SlotKey()})
	}
	return reply, nil
}

func (c *courtService) UpdateStatus(ctx context.Context, in *UpdateStatusRequest) (*BookingReply, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, grpcError(domain.ErrUnauthenticated)
	}
	if !id.IsAdmin() {
		return nil, grpcError(fmt.Errorf("admin only: %w", domain.ErrForbidden))
	}

	booking, err := c.svc.Bookings.UpdateStatus(ctx, in.ID, in.Status)
	if err != nil {
		return nil, grpcError(err)
	}

	return &BookingReply{
		ID:     booking.ID,
		UserID: booking.UserID,
		Status: booking.Status.String(),
		Date:   booking.DateKey,
		Court:  booking.Court,
		Hour:   booking.Hour,
	}, nil
}
