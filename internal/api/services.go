package api

import (
	"context"

	"courtbook/internal/domain"
)

// HealthChecker reports whether storage is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services bundles what the HTTP and gRPC fronts call into.
type Services struct {
	Bookings     domain.BookingService
	Availability domain.AvailabilityService
	Users        domain.UserService
	Identity     domain.IdentityResolver
	Health       HealthChecker
}
