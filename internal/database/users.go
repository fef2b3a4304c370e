package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const userColumns = `id, name, email, phone, password_hash, role, is_deleted, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
        INSERT INTO users (` + userColumns + `)
        VALUES (:id, :name, :email, :phone, :password_hash, :role, :is_deleted, :created_at, :updated_at)
    `

	if _, err := db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", user.Email, domain.ErrEmailTaken)
		}
		return domain.StorageError("create user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, translate("get user", err)
	}
	return &user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, translate("get user by email", err)
	}
	return &user, nil
}

// UpdateUser changes the provided fields of a live user; nil leaves a field as is.
func (db *DB) UpdateUser(ctx context.Context, id string, name, phone *string) (*models.User, error) {
	query := `
        UPDATE users
        SET name = COALESCE(?, name), phone = COALESCE(?, phone), updated_at = ?
        WHERE id = ? AND is_deleted = 0
    `

	result, err := db.ExecContext(ctx, query, name, phone, time.Now().UTC(), id)
	if err != nil {
		return nil, domain.StorageError("update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, domain.StorageError("update user", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("update user %s: %w", id, domain.ErrNotFound)
	}

	return db.GetUserByID(ctx, id)
}

// SoftDeleteUser flags the user as deleted. Repeating it is a no-op.
func (db *DB) SoftDeleteUser(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET is_deleted = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return domain.StorageError("soft delete user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.StorageError("soft delete user", err)
	}
	if rows == 0 {
		return fmt.Errorf("soft delete user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	err := db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE is_deleted = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

func (db *DB) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := db.GetContext(ctx, &profile,
		`SELECT user_id, emergency_name, emergency_phone, updated_at FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, translate("get profile", err)
	}
	return &profile, nil
}

func (db *DB) UpsertProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	profile.UpdatedAt = time.Now().UTC()

	query := `
        INSERT INTO profiles (user_id, emergency_name, emergency_phone, updated_at)
        VALUES (:user_id, :emergency_name, :emergency_phone, :updated_at)
        ON CONFLICT(user_id) DO UPDATE SET
            emergency_name = excluded.emergency_name,
            emergency_phone = excluded.emergency_phone,
            updated_at = excluded.updated_at
    `

	if _, err := db.NamedExecContext(ctx, query, profile); err != nil {
		return nil, domain.StorageError("upsert profile", err)
	}
	return db.GetProfile(ctx, profile.UserID)
}
