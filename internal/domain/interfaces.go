package domain

import (
	"context"
	"time"

	"courtbook/internal/models"
)

// BookingRepository is the persistent store behind the slot ledger.
// Create must fail with ErrSlotConflict when the slot already holds an active booking.
// UpdateBookingStatus with a non-empty expected status only applies while the row still
// holds that status and reports ErrConcurrentModification otherwise.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, expected, status models.Status) (*models.Booking, error)
	ListBookingsByDate(ctx context.Context, dateKey string, activeOnly bool) ([]*models.Booking, error)
	ListBookingsByUser(ctx context.Context, userID, dateKey string, activeOnly bool) ([]*models.Booking, error)
	ListAllBookings(ctx context.Context) ([]*models.Booking, error)
	ListTakenSlots(ctx context.Context, dateKey string) ([]models.TakenSlot, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, name, phone *string) (*models.User, error)
	SoftDeleteUser(ctx context.Context, id string) error
	ListActiveUsers(ctx context.Context) ([]*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error)
}

// UserDirectory answers whether a user id may own bookings.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// SessionStore keeps issued token ids and per-user counters.
type SessionStore interface {
	GetSession(ctx context.Context, tokenID string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, tokenID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type BookingService interface {
	Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	ListByDate(ctx context.Context, date string) ([]*models.Booking, error)
	ListActiveByDate(ctx context.Context, date string) ([]*models.Booking, error)
	ListByUser(ctx context.Context, userID, date string, activeOnly bool) ([]*models.Booking, error)
	ListAll(ctx context.Context) ([]*models.Booking, error)
	UpdateStatus(ctx context.Context, id, rawStatus string) (*models.Booking, error)
}

type AvailabilityService interface {
	TakenSlots(ctx context.Context, date string) ([]models.TakenSlot, error)
	Grid(ctx context.Context, date string) (map[string]models.Status, error)
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Logout(ctx context.Context, tokenID string) error
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, name, phone *string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SoftDelete(ctx context.Context, id string) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, userID, emergencyName, emergencyPhone string) (*models.Profile, error)
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID  string
	Email   string
	Role    string
	TokenID string
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// IdentityResolver turns a bearer token into an Identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

type CreateBookingRequest struct {
	Date   string `json:"date"`
	Court  int    `json:"court"`
	Hour   int    `json:"hour"`
	UserID string `json:"user_id"`
	Note   string `json:"note"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=32"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}
