package service

import (
	"context"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// AvailabilityService is a read-only projection of the ledger. It never caches,
// so a booking is visible to the next query once Create returns.
type AvailabilityService struct {
	repo   domain.BookingRepository
	courts config.CourtsConfig
}

func NewAvailabilityService(repo domain.BookingRepository, courts config.CourtsConfig) *AvailabilityService {
	return &AvailabilityService{repo: repo, courts: courts}
}

// TakenSlots lists the occupied (court, hour) pairs of the day, ordered by court then hour.
func (s *AvailabilityService) TakenSlots(ctx context.Context, date string) ([]models.TakenSlot, error) {
	date, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTakenSlots(ctx, date)
}

// Grid covers every bookable cell of the day keyed "court:hour". Free cells hold SlotFree.
func (s *AvailabilityService) Grid(ctx context.Context, date string) (map[string]models.Status, error) {
	taken, err := s.TakenSlots(ctx, date)
	if err != nil {
		return nil, err
	}

	grid := make(map[string]models.Status, s.courts.Count*(s.courts.CloseHour-s.courts.OpenHour))
	for court := 1; court <= s.courts.Count; court++ {
		for hour := s.courts.OpenHour; hour < s.courts.CloseHour; hour++ {
			grid[models.SlotKey(court, hour)] = models.SlotFree
		}
	}
	for _, slot := range taken {
		grid[slot.Key()] = slot.Status
	}
	return grid, nil
}
