package repository

import (
	"context"
	"sync"
	"time"

	"courtbook/internal/models"
)

// MemorySessionStore is the in-process fallback used when Redis is absent.
type MemorySessionStore struct {
	sessions   sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySessionStore) GetSession(_ context.Context, tokenID string) (*models.Session, error) {
	val, ok := r.sessions.Load(tokenID)
	if !ok {
		return nil, nil
	}
	session := val.(*models.Session)
	if session.Expired(r.now()) {
		r.sessions.Delete(tokenID)
		return nil, nil
	}
	return session, nil
}

func (r *MemorySessionStore) SetSession(_ context.Context, session *models.Session) error {
	stored := *session
	if stored.ExpiresAt.IsZero() && r.ttl > 0 {
		stored.ExpiresAt = r.now().Add(r.ttl)
	}
	r.sessions.Store(session.TokenID, &stored)
	return nil
}

func (r *MemorySessionStore) DeleteSession(_ context.Context, tokenID string) error {
	r.sessions.Delete(tokenID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionStore) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}
