package auth

import (
	"context"
	"testing"
	"time"

	"courtbook/internal/domain"
	"courtbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	sessions map[string]*models.Session
	err      error
}

func (s *stubSessions) GetSession(_ context.Context, tokenID string) (*models.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sessions[tokenID], nil
}

func (s *stubSessions) SetSession(_ context.Context, session *models.Session) error {
	s.sessions[session.TokenID] = session
	return nil
}

func (s *stubSessions) DeleteSession(_ context.Context, tokenID string) error {
	delete(s.sessions, tokenID)
	return nil
}

func (s *stubSessions) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

type stubUsers map[string]*models.User

func (u stubUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (u stubUsers) Exists(ctx context.Context, id string) (bool, error) {
	user, err := u.FindByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return !user.IsDeleted, nil
}

func newIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", "courtbook", time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "secret123"))
}

func TestNewTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer("", "courtbook", time.Hour)
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)

	issuer, err := NewTokenIssuer("s", "courtbook", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, issuer.ttl)
}

func TestIssueAndParse(t *testing.T) {
	issuer := newIssuer(t)
	user := &models.User{ID: "u1", Email: "a@example.com", Role: models.RoleAdmin}

	token, session, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, session.TokenID)
	assert.Equal(t, "u1", session.UserID)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, session.TokenID, claims.ID)

	_, err = issuer.Parse(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokenIssuer("other-secret", "courtbook", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseExpired(t *testing.T) {
	issuer := newIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseRejectsOtherAlgorithms(t *testing.T) {
	issuer := newIssuer(t)
	claims := &Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "t1",
			Issuer:    "courtbook",
			Audience:  []string{jwtAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	issuer := newIssuer(t)
	users := stubUsers{
		"u1": {ID: "u1", Email: "a@example.com", Role: models.RoleUser},
		"u2": {ID: "u2", Email: "b@example.com", Role: models.RoleUser, IsDeleted: true},
	}
	sessions := &stubSessions{sessions: map[string]*models.Session{}}
	resolver := NewResolver(issuer, sessions, users)

	login := func(user *models.User) string {
		token, session, err := issuer.Issue(user)
		require.NoError(t, err)
		require.NoError(t, sessions.SetSession(ctx, session))
		return token
	}

	t.Run("Valid", func(t *testing.T) {
		token := login(users["u1"])
		id, err := resolver.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "u1", id.UserID)
		assert.False(t, id.IsAdmin())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, " ")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "abc.def.ghi")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("RevokedSession", func(t *testing.T) {
		token := login(users["u1"])
		claims, err := issuer.Parse(token)
		require.NoError(t, err)
		require.NoError(t, sessions.DeleteSession(ctx, claims.ID))

		_, err = resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		assert.ErrorIs(t, err, ErrSessionRevoked)
	})

	t.Run("SoftDeletedUser", func(t *testing.T) {
		token := login(users["u2"])
		_, err := resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		token := login(&models.User{ID: "ghost"})
		_, err := resolver.Resolve(ctx, token)
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)

	_, ok = BearerToken("Bearer")
	assert.False(t, ok)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &domain.Identity{UserID: "u1"})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
