package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day key format used for bookings.
const DateLayout = "2006-01-02"

// Booking is one reservation of a court for one hour on one day.
type Booking struct {
	ID        string    `db:"id" json:"id"`
	DateKey   string    `db:"date_key" json:"date"`
	Court     int       `db:"court" json:"court"`
	Hour      int       `db:"hour" json:"hour"`
	UserID    string    `db:"user_id" json:"user_id"`
	Note      string    `db:"note" json:"note,omitempty"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SlotKey renders the court/hour pair as "court:hour".
func SlotKey(court, hour int) string {
	return fmt.Sprintf("%d:%d", court, hour)
}

func (b *Booking) SlotKey() string {
	return SlotKey(b.Court, b.Hour)
}

func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

// TakenSlot is an occupied cell of the availability grid.
type TakenSlot struct {
	Court  int    `db:"court" json:"court"`
	Hour   int    `db:"hour" json:"hour"`
	Status Status `db:"status" json:"status"`
}

func (s TakenSlot) Key() string {
	return SlotKey(s.Court, s.Hour)
}
