package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type importEntry struct {
	Date   string `yaml:"date"`
	Court  int    `yaml:"court"`
	Hour   int    `yaml:"hour"`
	Email  string `yaml:"email"`
	Note   string `yaml:"note"`
	Status string `yaml:"status"`
}

type importFile struct {
	Bookings []importEntry `yaml:"bookings"`
}

// directory resolves users straight from the database.
type directory struct {
	db *database.DB
}

func (d directory) FindByID(ctx context.Context, id string) (*models.User, error) {
	return d.db.GetUserByID(ctx, id)
}

func (d directory) Exists(ctx context.Context, id string) (bool, error) {
	user, err := d.db.GetUserByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !user.IsDeleted, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		inputPath  = flag.String("bookings", "configs/bookings.yaml", "path to bookings.yaml")
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		return fmt.Errorf("read bookings: %w", err)
	}
	var input importFile
	if err = yaml.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parse bookings: %w", err)
	}
	if len(input.Bookings) == 0 {
		return errors.New("no bookings in yaml")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger, database.WithBusyTimeout(cfg.Database.BusyTimeoutMS))
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// Imports bypass the per-user rate limit and do not emit events.
	rules := cfg.Bookings
	rules.RateLimitPerMinute = 0
	ledger := service.NewBookingService(db, directory{db: db}, nil, nil, cfg.Courts, rules, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, conflicts := 0, 0
	for _, entry := range input.Bookings {
		user, err := db.GetUserByEmail(ctx, entry.Email)
		if err != nil {
			return fmt.Errorf("user %s: %w", entry.Email, err)
		}

		booking, err := ledger.Create(ctx, domain.CreateBookingRequest{
			Date:   entry.Date,
			Court:  entry.Court,
			Hour:   entry.Hour,
			UserID: user.ID,
			Note:   entry.Note,
		})
		if errors.Is(err, domain.ErrSlotConflict) {
			logger.Warn().Str("date", entry.Date).Int("court", entry.Court).Int("hour", entry.Hour).Msg("slot taken, skipped")
			conflicts++
			continue
		}
		if err != nil {
			return fmt.Errorf("create %s court %d hour %d: %w", entry.Date, entry.Court, entry.Hour, err)
		}

		if entry.Status != "" && models.NormalizeStatus(entry.Status) != booking.Status {
			if _, err = ledger.UpdateStatus(ctx, booking.ID, entry.Status); err != nil {
				return fmt.Errorf("set status of %s: %w", booking.ID, err)
			}
		}
		created++
	}

	fmt.Printf("done: created=%d conflicts=%d\n", created, conflicts)
	return nil
}
