package repository

import (
	"context"
	"sync/atomic"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionStore prefers the primary store and switches to the fallback
// when the primary errors. The primary is retried once per recoveryInterval.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary store.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return time.Since(last) > recoveryInterval
}

func (r *FailoverSessionStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverSessionStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary session store recovered")
	}
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, tokenID string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, tokenID)
		if err == nil {
			r.markUp()
			if session != nil {
				return session, nil
			}
			// Sessions issued during an outage live only in the fallback.
			return r.fallback.GetSession(ctx, tokenID)
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, tokenID)
}

// SetSession writes to the fallback as well so a later outage keeps sessions valid.
func (r *FailoverSessionStore) SetSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.markUp()
			_ = r.fallback.SetSession(ctx, session)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionStore) DeleteSession(ctx context.Context, tokenID string) error {
	fallbackErr := r.fallback.DeleteSession(ctx, tokenID)
	if r.usePrimary() {
		err := r.primary.DeleteSession(ctx, tokenID)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return fallbackErr
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
