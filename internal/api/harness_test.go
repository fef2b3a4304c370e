package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtbook/internal/auth"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/repository"
	"courtbook/internal/service"

	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass"
	userPassword  = "secret123"
)

type harness struct {
	db       *database.DB
	services Services
	users    *service.UserService
	bus      *events.EventBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewDB(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	tokens, err := auth.NewTokenIssuer("test-secret", "courtbook", time.Hour)
	require.NoError(t, err)

	sessions := repository.NewMemorySessionStore(time.Hour)
	users := service.NewUserService(db, sessions, tokens, nil)
	require.NoError(t, users.SeedAdmin(context.Background(), config.AdminConfig{
		Name: "Admin", Email: adminEmail, Password: adminPassword,
	}))

	bus := events.NewEventBus(nil)
	courts := config.CourtsConfig{Count: 6, OpenHour: 9, CloseHour: 21}
	rules := config.BookingsConfig{RateLimitPerMinute: 30, NoteMaxLength: 500}

	return &harness{
		db:    db,
		users: users,
		bus:   bus,
		services: Services{
			Bookings:     service.NewBookingService(db, users, sessions, bus, courts, rules, nil),
			Availability: service.NewAvailabilityService(db, courts),
			Users:        users,
			Identity:     auth.NewResolver(tokens, sessions, users),
			Health:       db,
		},
	}
}

func (h *harness) register(t *testing.T, email string) string {
	t.Helper()
	user, err := h.users.Register(context.Background(), domain.RegisterRequest{
		Name: "Player", Email: email, Password: userPassword,
	})
	require.NoError(t, err)
	return user.ID
}

func (h *harness) login(t *testing.T, email, password string) *domain.LoginResult {
	t.Helper()
	result, err := h.users.Login(context.Background(), email, password)
	require.NoError(t, err)
	return result
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}
