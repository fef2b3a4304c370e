package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"courtbook/internal/auth"
	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	server  *http.Server
	limiter *rateLimiter
	logger  *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "GET /healthz", s.handleHealth)
	s.route(mux, "GET /readyz", s.handleReady)

	s.route(mux, "POST /api/auth/register", s.handleRegister)
	s.route(mux, "POST /api/auth/login", s.handleLogin)
	s.route(mux, "POST /api/auth/logout", s.authed(s.handleLogout))

	s.route(mux, "GET /api/users/{id}", s.handleGetUser)
	s.route(mux, "PATCH /api/users/{id}", s.authed(s.handleUpdateUser))
	s.route(mux, "GET /api/profile/{userId}", s.handleGetProfile)
	s.route(mux, "POST /api/profile/{userId}", s.authed(s.handleUpsertProfile))

	s.route(mux, "GET /api/bookings/taken", s.handleTakenSlots)
	s.route(mux, "GET /api/bookings/grid", s.handleGrid)
	s.route(mux, "POST /api/bookings", s.authed(s.handleCreateBooking))
	s.route(mux, "GET /api/bookings/my/{userId}/{date}", s.handleMyBookings)
	s.route(mux, "GET /api/bookings/user/{userId}", s.handleUserBookings)

	s.route(mux, "GET /api/admin/bookings", s.admin(s.handleAdminBookings))
	s.route(mux, "PUT /api/admin/bookings/{id}/status", s.admin(s.handleUpdateStatus))
	s.route(mux, "GET /api/admin/users", s.admin(s.handleAdminUsers))
	s.route(mux, "DELETE /api/admin/users/{id}", s.admin(s.handleDeleteUser))

	return s.loggingMiddleware(s.rateLimitMiddleware(mux))
}

func (s *HTTPServer) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type identityHandler func(w http.ResponseWriter, r *http.Request, id *domain.Identity)

// authed resolves the bearer token and rejects anonymous callers.
func (s *HTTPServer) authed(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.writeError(w, r, fmt.Errorf("missing bearer token: %w", domain.ErrUnauthenticated))
			return
		}

		id, err := s.svc.Identity.Resolve(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		next(w, r.WithContext(auth.WithIdentity(r.Context(), id)), id)
	}
}

func (s *HTTPServer) admin(next identityHandler) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, id *domain.Identity) {
		if !id.IsAdmin() {
			s.writeError(w, r, fmt.Errorf("admin only: %w", domain.ErrForbidden))
			return
		}
		next(w, r, id)
	})
}

// selfOrAdmin guards per-user resources.
func selfOrAdmin(id *domain.Identity, userID string) error {
	if id.UserID == userID || id.IsAdmin() {
		return nil
	}
	return fmt.Errorf("user %s acting on %s: %w", id.UserID, userID, domain.ErrForbidden)
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			s.writeError(w, r, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

type ctxKeyRequestID struct{}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, requestID)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain error onto a status code. Server-side failures are
// logged here and nowhere else.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	body := map[string]string{"error": publicMessage(err)}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid JSON body")
	}
	return nil
}
