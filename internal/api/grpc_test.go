package api

import (
	"context"
	"net"
	"testing"

	"courtbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestGRPCClient(t *testing.T, h *harness) *CourtClient {
	t.Helper()

	srv, err := buildGRPCServer(&config.APIConfig{}, h.services, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewCourtClient(conn)
}

func withToken(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), authMetadataKey, "Bearer "+token)
}

func TestGRPC_BookingScenario(t *testing.T) {
	h := newHarness(t)
	client := newTestGRPCClient(t, h)

	aliceID := h.register(t, "alice@example.com")
	h.register(t, "bob@example.com")
	alice := h.login(t, "alice@example.com", userPassword).Token
	bob := h.login(t, "bob@example.com", userPassword).Token

	var header metadata.MD
	reply, err := client.CreateBooking(withToken(alice), &CreateBookingRequest{Date: "2024-06-01", Court: 3, Hour: 18}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, "booked", reply.Status)
	assert.Equal(t, aliceID, reply.UserID)
	assert.NotEmpty(t, header.Get(requestIDMetadataKey))

	_, err = client.CreateBooking(withToken(bob), &CreateBookingRequest{Date: "2024-06-01", Court: 3, Hour: 18})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	taken, err := client.TakenSlots(context.Background(), &TakenSlotsRequest{Date: "2024-06-01"})
	require.NoError(t, err)
	require.Len(t, taken.Slots, 1)
	assert.Equal(t, "3:18", taken.Slots[0].Key)
	assert.Equal(t, "booked", taken.Slots[0].Status)

	mine, err := client.ListMine(context.Background(), &ListMineRequest{UserID: aliceID, Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3:18"}, mine.Mine)

	mine, err = client.ListMine(withToken(alice), &ListMineRequest{Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3:18"}, mine.Mine)
}

func TestGRPC_Errors(t *testing.T) {
	h := newHarness(t)
	client := newTestGRPCClient(t, h)
	h.register(t, "carol@example.com")
	carol := h.login(t, "carol@example.com", userPassword).Token

	_, err := client.CreateBooking(context.Background(), &CreateBookingRequest{Date: "2024-06-01", Court: 1, Hour: 10})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.CreateBooking(withToken("not-a-token"), &CreateBookingRequest{Date: "2024-06-01", Court: 1, Hour: 10})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.CreateBooking(withToken(carol), &CreateBookingRequest{Date: "2024-06-01", Court: 1, Hour: 25})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.TakenSlots(context.Background(), &TakenSlotsRequest{Date: "2024/06/01"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.UpdateStatus(withToken(carol), &UpdateStatusRequest{ID: "x", Status: "cancelled"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.ListMine(context.Background(), &ListMineRequest{Date: "2024-06-01"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_AdminUpdateStatus(t *testing.T) {
	h := newHarness(t)
	client := newTestGRPCClient(t, h)
	h.register(t, "dora@example.com")
	dora := h.login(t, "dora@example.com", userPassword).Token
	admin := h.login(t, adminEmail, adminPassword).Token

	created, err := client.CreateBooking(withToken(dora), &CreateBookingRequest{Date: "2024-06-01", Court: 4, Hour: 12})
	require.NoError(t, err)

	updated, err := client.UpdateStatus(withToken(admin), &UpdateStatusRequest{ID: created.ID, Status: "checked_in"})
	require.NoError(t, err)
	assert.Equal(t, "arrived", updated.Status)

	_, err = client.UpdateStatus(withToken(admin), &UpdateStatusRequest{ID: "missing", Status: "cancelled"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
