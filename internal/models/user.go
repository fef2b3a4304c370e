package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	IsDeleted    bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile holds the emergency contact attached to a user.
type Profile struct {
	UserID         string    `db:"user_id" json:"user_id"`
	EmergencyName  string    `db:"emergency_name" json:"emergency_name"`
	EmergencyPhone string    `db:"emergency_phone" json:"emergency_phone"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
