package models

import "strings"

// Status is the stored lifecycle state of a booking.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusArrived   Status = "arrived"
	StatusCancelled Status = "cancelled"

	// SlotFree marks an unoccupied cell of an availability grid. It is never stored.
	SlotFree Status = "free"
)

// ActiveStatuses occupy a slot.
var ActiveStatuses = []Status{StatusBooked, StatusArrived}

func (s Status) IsActive() bool {
	return s == StatusBooked || s == StatusArrived
}

func (s Status) String() string {
	return string(s)
}

// NormalizeStatus maps client vocabulary onto stored statuses.
// Unknown values fall back to booked.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "checked_in", "arrived":
		return StatusArrived
	case "canceled", "cancelled":
		return StatusCancelled
	default:
		return StatusBooked
	}
}

var allowedTransitions = map[Status][]Status{
	StatusBooked:  {StatusArrived, StatusCancelled},
	StatusArrived: {StatusCancelled},
}

// CanTransition reports whether from -> to is allowed when transitions are guarded.
// Re-applying the current status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	// DefaultSessionTTL is used when no token lifetime is configured.
	DefaultSessionTTL = 24 * 60 * 60

	// RateLimitWindow is the window for per-user booking throttling, seconds.
	RateLimitWindow = 60
)
