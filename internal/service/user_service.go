package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"courtbook/internal/auth"
	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxNameLength  = 100
	maxPhoneLength = 32
)

// UserService is the user directory: accounts, sessions and emergency profiles.
type UserService struct {
	repo     domain.UserRepository
	sessions domain.SessionStore
	tokens   *auth.TokenIssuer
	validate *validator.Validate
	logger   *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, sessions domain.SessionStore, tokens *auth.TokenIssuer, logger *zerolog.Logger) *UserService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})

	return &UserService{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		validate: validate,
		logger:   logger,
	}
}

func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("request", err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(fe.Field(), "is required")
	case "email":
		return domain.NewValidationError(fe.Field(), "must be a valid email address")
	case "min":
		return domain.NewValidationError(fe.Field(), "must be at least "+fe.Param()+" characters")
	case "max":
		return domain.NewValidationError(fe.Field(), "must be at most "+fe.Param()+" characters")
	default:
		return domain.NewValidationError(fe.Field(), "is invalid")
	}
}

func (s *UserService) Register(ctx context.Context, req domain.RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	if err := s.validate.Struct(req); err != nil {
		return nil, validationFailure(err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User registered")
	return user, nil
}

// Login checks the credentials and opens a session keyed by the token id.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.NewValidationError("credentials", "email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.IsDeleted {
		return nil, fmt.Errorf("user %s: %w", user.ID, domain.ErrUserDisabled)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User logged in")
	return &domain.LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

func (s *UserService) Logout(ctx context.Context, tokenID string) error {
	tokenID, err := requireID("token_id", tokenID)
	if err != nil {
		return err
	}
	return s.sessions.DeleteSession(ctx, tokenID)
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// Update changes name and/or phone. A nil field is left untouched.
func (s *UserService) Update(ctx context.Context, id string, name, phone *string) (*models.User, error) {
	id, err := requireID("id", id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, domain.NewValidationError("name", "cannot be empty")
		}
		if err := maxRunes("name", trimmed, maxNameLength); err != nil {
			return nil, err
		}
		name = &trimmed
	}
	if phone != nil {
		trimmed := strings.TrimSpace(*phone)
		if err := maxRunes("phone", trimmed, maxPhoneLength); err != nil {
			return nil, err
		}
		phone = &trimmed
	}

	return s.repo.UpdateUser(ctx, id, name, phone)
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListActiveUsers(ctx)
}

// SoftDelete disables the account. Its bookings stay in the ledger.
func (s *UserService) SoftDelete(ctx context.Context, id string) error {
	id, err := requireID("id", id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id).Msg("User soft-deleted")
	return nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	userID, err := requireID("user_id", userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetProfile(ctx, userID)
}

func (s *UserService) UpsertProfile(ctx context.Context, userID, emergencyName, emergencyPhone string) (*models.Profile, error) {
	userID, err := requireID("user_id", userID)
	if err != nil {
		return nil, err
	}

	emergencyName = strings.TrimSpace(emergencyName)
	emergencyPhone = strings.TrimSpace(emergencyPhone)
	if err := maxRunes("emergency_name", emergencyName, maxNameLength); err != nil {
		return nil, err
	}
	if err := maxRunes("emergency_phone", emergencyPhone, maxPhoneLength); err != nil {
		return nil, err
	}

	exists, err := s.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}

	return s.repo.UpsertProfile(ctx, &models.Profile{
		UserID:         userID,
		EmergencyName:  emergencyName,
		EmergencyPhone: emergencyPhone,
	})
}

// FindByID returns the user including soft-deleted ones.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// Exists reports whether the id names a live, not soft-deleted user.
func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !user.IsDeleted, nil
}

// SeedAdmin creates the configured admin account unless the email is already registered.
func (s *UserService) SeedAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}

	existing, err := s.repo.GetUserByEmail(ctx, cfg.Email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			s.logger.Warn().Str("email", existing.Email).Msg("Admin email belongs to a regular user, not promoting")
		}
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	hash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		ID:           uuid.NewString(),
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := s.repo.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	s.logger.Info().Str("email", admin.Email).Msg("Admin account created")
	return nil
}
