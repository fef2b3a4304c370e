package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingsCreated)
	IncBookingCreated()
	assert.Equal(t, before+1, testutil.ToFloat64(bookingsCreated))

	before = testutil.ToFloat64(slotConflicts)
	IncSlotConflict()
	assert.Equal(t, before+1, testutil.ToFloat64(slotConflicts))

	before = testutil.ToFloat64(statusChanges.WithLabelValues("arrived"))
	IncStatusChange("arrived")
	assert.Equal(t, before+1, testutil.ToFloat64(statusChanges.WithLabelValues("arrived")))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("taken"))
	IncHTTP("taken")
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("taken")))

	assert.NotPanics(t, func() {
		IncGRPC("/courtbook.v1.CourtService/TakenSlots", "OK")
		IncEventDelivery("ok")
	})
}

func TestHandlerExposesNamespace(t *testing.T) {
	Register()
	IncBookingCreated()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "courtbook_bookings_created_total")
}
