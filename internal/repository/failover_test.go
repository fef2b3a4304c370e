package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSession(ctx context.Context, tokenID string) (*models.Session, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockStore) SetSession(ctx context.Context, session *models.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockStore) DeleteSession(ctx context.Context, tokenID string) error {
	return m.Called(ctx, tokenID).Error(0)
}

func (m *mockStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverSessionStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverSessionStore(primary, fallback, &logger)
	ctx := context.Background()

	markRecentlyDown := func() {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())
	}

	t.Run("PrimarySuccess", func(t *testing.T) {
		session := &models.Session{TokenID: "t1", UserID: "u1"}
		primary.On("GetSession", ctx, "t1").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "t1")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryMissFallsThroughToFallback", func(t *testing.T) {
		session := &models.Session{TokenID: "t0", UserID: "u0"}
		primary.On("GetSession", ctx, "t0").Return(nil, nil).Once()
		fallback.On("GetSession", ctx, "t0").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "t0")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		fallback.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		session := &models.Session{TokenID: "t2", UserID: "u2"}
		primary.On("GetSession", ctx, "t2").Return(nil, errors.New("fail")).Once()
		fallback.On("GetSession", ctx, "t2").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "t2")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		markRecentlyDown()
		fallback.On("CheckRateLimit", ctx, "k", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "CheckRateLimit", ctx, "k", 10, time.Minute)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		session := &models.Session{TokenID: "t3"}
		primary.On("GetSession", ctx, "t3").Return(session, nil).Once()

		got, err := repo.GetSession(ctx, "t3")
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetSession", ctx, "t4").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetSession", ctx, "t4").Return(nil, nil).Once()

		got, err := repo.GetSession(ctx, "t4")
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.True(t, repo.isDown.Load())
		assert.False(t, repo.usePrimary(), "next retry waits for the recovery interval")
	})

	t.Run("SetSessionWritesBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		session := &models.Session{TokenID: "t5"}
		primary.On("SetSession", ctx, session).Return(nil).Once()
		fallback.On("SetSession", ctx, session).Return(nil).Once()

		assert.NoError(t, repo.SetSession(ctx, session))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetSessionFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		session := &models.Session{TokenID: "t6"}
		primary.On("SetSession", ctx, session).Return(errors.New("fail")).Once()
		fallback.On("SetSession", ctx, session).Return(nil).Once()

		assert.NoError(t, repo.SetSession(ctx, session))
		assert.True(t, repo.isDown.Load())
		fallback.AssertExpectations(t)
	})

	t.Run("DeleteSessionBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("DeleteSession", ctx, "t7").Return(nil).Once()
		primary.On("DeleteSession", ctx, "t7").Return(nil).Once()

		assert.NoError(t, repo.DeleteSession(ctx, "t7"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("DeleteSessionPrimaryDown", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("DeleteSession", ctx, "t8").Return(nil).Once()
		primary.On("DeleteSession", ctx, "t8").Return(errors.New("fail")).Once()

		assert.NoError(t, repo.DeleteSession(ctx, "t8"))
		assert.True(t, repo.isDown.Load())
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "k6", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "k6", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "k6", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
	})
}
