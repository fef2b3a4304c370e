package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/auth"
	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/metrics"
	"courtbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxStatusAttempts bounds compare-and-set retries of a guarded status update.
const maxStatusAttempts = 3

// BookingService is the slot ledger. The storage layer rejects a second active
// booking for the same (date, court, hour), so no locking happens here.
type BookingService struct {
	repo     domain.BookingRepository
	users    domain.UserDirectory
	limiter  domain.SessionStore
	eventBus domain.EventPublisher
	courts   config.CourtsConfig
	rules    config.BookingsConfig
	logger   *zerolog.Logger
	newID    func() string
}

// NewBookingService wires the ledger. limiter and eventBus may be nil.
func NewBookingService(
	repo domain.BookingRepository,
	users domain.UserDirectory,
	limiter domain.SessionStore,
	eventBus domain.EventPublisher,
	courts config.CourtsConfig,
	rules config.BookingsConfig,
	logger *zerolog.Logger,
) *BookingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:     repo,
		users:    users,
		limiter:  limiter,
		eventBus: eventBus,
		courts:   courts,
		rules:    rules,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

func (s *BookingService) validateCreate(req domain.CreateBookingRequest) (domain.CreateBookingRequest, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return req, err
	}
	req.Date = date

	if err := validateSlot(s.courts, req.Court, req.Hour); err != nil {
		return req, err
	}

	if req.UserID, err = requireID("user_id", req.UserID); err != nil {
		return req, err
	}

	req.Note = strings.TrimSpace(req.Note)
	if err := maxRunes("note", req.Note, s.rules.NoteMaxLength); err != nil {
		return req, err
	}
	return req, nil
}

// Create reserves the slot for the user. All input checks run before storage is touched.
func (s *BookingService) Create(ctx context.Context, req domain.CreateBookingRequest) (*models.Booking, error) {
	req, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrNotFound)
	}

	if err := s.checkRateLimit(ctx, req.UserID); err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:      s.newID(),
		DateKey: req.Date,
		Court:   req.Court,
		Hour:    req.Hour,
		UserID:  req.UserID,
		Note:    req.Note,
		Status:  models.StatusBooked,
	}

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, domain.ErrSlotConflict) {
			metrics.IncSlotConflict()
			s.logger.Info().
				Str("date", booking.DateKey).
				Int("court", booking.Court).
				Int("hour", booking.Hour).
				Str("user_id", booking.UserID).
				Msg("Slot already taken")
		}
		return nil, err
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("date", booking.DateKey).
		Int("court", booking.Court).
		Int("hour", booking.Hour).
		Msg("Booking created")

	s.publishEvent(ctx, events.EventBookingCreated, booking, "")
	return booking, nil
}

func (s *BookingService) checkRateLimit(ctx context.Context, userID string) error {
	if s.limiter == nil || s.rules.RateLimitPerMinute <= 0 {
		return nil
	}

	allowed, err := s.limiter.CheckRateLimit(ctx, "booking:"+userID, s.rules.RateLimitPerMinute, models.RateLimitWindow*time.Second)
	if err != nil {
		// The limiter is advisory; the ledger stays available without it.
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Rate limit check failed")
		return nil
	}
	if !allowed {
		return fmt.Errorf("user %s: %w", userID, domain.ErrRateLimited)
	}
	return nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetBooking(ctx, id)
}

// ListByDate returns every booking of the day, cancelled ones included.
func (s *BookingService) ListByDate(ctx context.Context, date string) ([]*models.Booking, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByDate(ctx, date, false)
}

func (s *BookingService) ListActiveByDate(ctx context.Context, date string) ([]*models.Booking, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByDate(ctx, date, true)
}

// ListByUser lists one user's bookings. An empty date means all days.
func (s *BookingService) ListByUser(ctx context.Context, userID, date string, activeOnly bool) ([]*models.Booking, error) {
	userID, err := requireID("user_id", userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(date) != "" {
		if date, err = parseDate(date); err != nil {
			return nil, err
		}
	}
	return s.repo.ListBookingsByUser(ctx, userID, date, activeOnly)
}

func (s *BookingService) ListAll(ctx context.Context) ([]*models.Booking, error) {
	return s.repo.ListAllBookings(ctx)
}

// UpdateStatus moves a booking to the normalized status. Applying the current
// status again succeeds without a write. With strict transitions the change is
// checked against the transition table and applied only if the row still holds
// the status it was checked against.
func (s *BookingService) UpdateStatus(ctx context.Context, id, rawStatus string) (*models.Booking, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	target := models.NormalizeStatus(rawStatus)

	for attempt := 1; attempt <= maxStatusAttempts; attempt++ {
		current, err := s.repo.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}

		var expected models.Status
		if s.rules.StrictTransitions {
			if !models.CanTransition(current.Status, target) {
				return nil, fmt.Errorf("%s -> %s: %w", current.Status, target, domain.ErrInvalidTransition)
			}
			expected = current.Status
		}

		updated, err := s.repo.UpdateBookingStatus(ctx, id, expected, target)
		switch {
		case errors.Is(err, domain.ErrConcurrentModification):
			s.logger.Debug().Str("booking_id", id).Int("attempt", attempt).Msg("Status changed underneath, retrying")
			continue
		case errors.Is(err, domain.ErrSlotConflict):
			metrics.IncSlotConflict()
			return nil, err
		case err != nil:
			return nil, err
		}

		metrics.IncStatusChange(target.String())
		s.logger.Info().
			Str("booking_id", id).
			Str("from", current.Status.String()).
			Str("to", target.String()).
			Msg("Booking status changed")

		s.publishEvent(ctx, events.EventBookingStatusChanged, updated, current.Status)
		return updated, nil
	}

	return nil, fmt.Errorf("booking %s: %w", id, domain.ErrConcurrentModification)
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, previous models.Status) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		UserID:         booking.UserID,
		Date:           booking.DateKey,
		Court:          booking.Court,
		Hour:           booking.Hour,
		Status:         booking.Status.String(),
		PreviousStatus: previous.String(),
		Note:           booking.Note,
		ChangedBy:      "system",
		OccurredAt:     time.Now().UTC(),
	}
	if id, ok := auth.IdentityFrom(ctx); ok {
		payload.ChangedBy = id.UserID
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("event", eventType).Msg("Failed to publish event")
	}
}
