package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"courtbook/internal/config"
	"courtbook/internal/domain"
	"courtbook/internal/models"
)

// parseDate accepts calendar dates in YYYY-MM-DD only; "2024-02-30" is rejected.
func parseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("date", "is required")
	}
	if _, err := time.Parse(models.DateLayout, raw); err != nil {
		return "", domain.NewValidationError("date", "must be a calendar date in YYYY-MM-DD format")
	}
	return raw, nil
}

func validateSlot(courts config.CourtsConfig, court, hour int) error {
	if court < 1 || court > courts.Count {
		return domain.NewValidationError("court", "out of range")
	}
	if hour < 0 || hour > 23 || hour < courts.OpenHour || hour >= courts.CloseHour {
		return domain.NewValidationError("hour", "outside opening hours")
	}
	return nil
}

func requireID(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", domain.NewValidationError(field, "is required")
	}
	return value, nil
}

func maxRunes(field, value string, limit int) error {
	if limit > 0 && utf8.RuneCountInString(value) > limit {
		return domain.NewValidationError(field, "is too long")
	}
	return nil
}
