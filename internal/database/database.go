package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"courtbook/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const (
	memoryPath         = ":memory:"
	defaultBusyTimeout = 5000
)

// activeStatusSQL matches the statuses that occupy a slot.
const activeStatusSQL = `status IN ('booked', 'arrived')`

type DB struct {
	*sqlx.DB
	path   string
	logger *zerolog.Logger
}

type Option func(*options)

type options struct {
	busyTimeoutMS int
}

// WithBusyTimeout sets how long a writer waits for the sqlite lock.
func WithBusyTimeout(ms int) Option {
	return func(o *options) {
		if ms > 0 {
			o.busyTimeoutMS = ms
		}
	}
}

func NewDB(path string, logger *zerolog.Logger, opts ...Option) (*DB, error) {
	o := options{busyTimeoutMS: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite3", dsn(path, o))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == memoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("Database initialized")
	}

	return &DB{DB: conn, path: path, logger: logger}, nil
}

// NewFromSQL wraps an already opened handle without touching the schema.
func NewFromSQL(conn *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{DB: sqlx.NewDb(conn, "sqlite3"), logger: logger}
}

func dsn(path string, o options) string {
	if path == memoryPath {
		return path
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, o.busyTimeoutMS)
}

func createTables(conn *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE COLLATE NOCASE,
            phone TEXT NOT NULL DEFAULT '',
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user',
            is_deleted BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS profiles (
            user_id TEXT PRIMARY KEY,
            emergency_name TEXT NOT NULL DEFAULT '',
            emergency_phone TEXT NOT NULL DEFAULT '',
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id TEXT PRIMARY KEY,
            date_key TEXT NOT NULL,
            court INTEGER NOT NULL,
            hour INTEGER NOT NULL CHECK (hour BETWEEN 0 AND 23),
            user_id TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'booked' CHECK (status IN ('booked', 'arrived', 'cancelled')),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		// At most one active booking per slot.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_active_slot
            ON bookings(date_key, court, hour) WHERE ` + activeStatusSQL,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id, date_key)`,
		`CREATE INDEX IF NOT EXISTS idx_users_is_deleted ON users(is_deleted)`,
	}

	for _, query := range queries {
		if _, err := conn.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", strings.TrimSpace(query), err)
		}
	}
	return nil
}

func (db *DB) Path() string {
	return db.path
}

// HealthCheck pings the database; used by readiness probes.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return domain.StorageError("ping", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	return false
}

// translate maps driver errors onto domain errors.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	default:
		return domain.StorageError(op, err)
	}
}
