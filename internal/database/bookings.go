package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"
)

const bookingColumns = `id, date_key, court, hour, user_id, note, status, created_at, updated_at`

// CreateBooking inserts the booking as a single statement. The partial unique
// index rejects a second active booking for the same slot.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = booking.CreatedAt
	if booking.Status == "" {
		booking.Status = models.StatusBooked
	}

	query := `
        INSERT INTO bookings (` + bookingColumns + `)
        VALUES (:id, :date_key, :court, :hour, :user_id, :note, :status, :created_at, :updated_at)
    `

	if _, err := db.NamedExecContext(ctx, query, booking); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create booking %s court %d hour %d: %w",
				booking.DateKey, booking.Court, booking.Hour, domain.ErrSlotConflict)
		}
		return domain.StorageError("create booking", err)
	}

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	var booking models.Booking
	if err := db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, translate("get booking", err)
	}
	return &booking, nil
}

// UpdateBookingStatus overwrites the status. When expected is set the row is
// only touched while it still holds that status.
func (db *DB) UpdateBookingStatus(ctx context.Context, id string, expected, status models.Status) (*models.Booking, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	args := []any{status, time.Now().UTC(), id}
	if expected != "" {
		query += ` AND status = ?`
		args = append(args, expected)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update booking %s to %s: %w", id, status, domain.ErrSlotConflict)
		}
		return nil, domain.StorageError("update booking status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, domain.StorageError("update booking status", err)
	}

	if rows == 0 {
		current, err := db.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if expected != "" && current.Status != expected {
			return nil, fmt.Errorf("booking %s is %s: %w", id, current.Status, domain.ErrConcurrentModification)
		}
		return current, nil
	}

	return db.GetBooking(ctx, id)
}

// ListBookingsByDate returns the day's bookings ordered by court, then hour.
func (db *DB) ListBookingsByDate(ctx context.Context, dateKey string, activeOnly bool) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date_key = ?`
	if activeOnly {
		query += ` AND ` + activeStatusSQL
	}
	query += ` ORDER BY court, hour, created_at`

	bookings := []*models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query, dateKey); err != nil {
		return nil, translate("list bookings by date", err)
	}
	return bookings, nil
}

// ListBookingsByUser returns one user's bookings. With a date they are ordered
// by hour; without one, newest day first.
func (db *DB) ListBookingsByUser(ctx context.Context, userID, dateKey string, activeOnly bool) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ?`
	args := []any{userID}

	if dateKey != "" {
		query += ` AND date_key = ?`
		args = append(args, dateKey)
	}
	if activeOnly {
		query += ` AND ` + activeStatusSQL
	}

	if dateKey != "" {
		query += ` ORDER BY hour, court`
	} else {
		query += ` ORDER BY date_key DESC, hour, court`
	}

	bookings := []*models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, translate("list bookings by user", err)
	}
	return bookings, nil
}

func (db *DB) ListAllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY date_key DESC, court, hour`

	bookings := []*models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query); err != nil {
		return nil, translate("list bookings", err)
	}
	return bookings, nil
}

// ListTakenSlots projects active bookings of a day onto (court, hour, status).
func (db *DB) ListTakenSlots(ctx context.Context, dateKey string) ([]models.TakenSlot, error) {
	query := `
        SELECT court, hour, status
        FROM bookings
        WHERE date_key = ? AND ` + activeStatusSQL + `
        ORDER BY court, hour
    `

	slots := []models.TakenSlot{}
	if err := db.SelectContext(ctx, &slots, query, dateKey); err != nil {
		return nil, translate("list taken slots", err)
	}
	return slots, nil
}

// CountActiveBookings returns how many active bookings hold the slot.
func (db *DB) CountActiveBookings(ctx context.Context, dateKey string, court, hour int) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE date_key = ? AND court = ? AND hour = ? AND ` + activeStatusSQL

	var count int
	if err := db.GetContext(ctx, &count, query, dateKey, court, hour); err != nil {
		return 0, translate("count active bookings", err)
	}
	return count, nil
}
