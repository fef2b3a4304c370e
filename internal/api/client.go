package api

import (
	"context"

	"google.golang.org/grpc"
)

// CourtClient calls CourtService over a connection using the JSON codec.
type CourtClient struct {
	cc grpc.ClientConnInterface
}

func NewCourtClient(cc grpc.ClientConnInterface) *CourtClient {
	return &CourtClient{cc: cc}
}

func (c *CourtClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *CourtClient) CreateBooking(ctx context.Context, in *CreateBookingRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	out := new(BookingReply)
	if err := c.invoke(ctx, methodCreateBooking, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CourtClient) TakenSlots(ctx context.Context, in *TakenSlotsRequest, opts ...grpc.CallOption) (*TakenSlotsReply, error) {
	out := new(TakenSlotsReply)
	if err := c.invoke(ctx, methodTakenSlots, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CourtClient) ListMine(ctx context.Context, in *ListMineRequest, opts ...grpc.CallOption) (*ListMineReply, error) {
	out := new(ListMineReply)
	if err := c.invoke(ctx, methodListMine, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CourtClient) UpdateStatus(ctx context.Context, in *UpdateStatusRequest, opts ...grpc.CallOption) (*BookingReply, error) {
	out := new(BookingReply)
	if err := c.invoke(ctx, methodUpdateStatus, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
