package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopcat/apiserver/internal/testutil"
	"github.com/shopcat/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newTestAuthService(ttl time.Duration) (*AuthService, *testutil.Users, *testutil.Tokens) {
	users := testutil.NewUsers()
	tokens := testutil.NewTokens()
	svc := NewAuthService(users, tokens, NewJWTIssuer(testSecret), ttl)
	svc.hashCost = bcrypt.MinCost
	return svc, users, tokens
}

func registerAndLogin(t *testing.T, svc *AuthService, email string) (types.User, string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: email, Password: "password123"})
	require.NoError(t, err)
	user, token, err := svc.Login(ctx, email, "password123")
	require.NoError(t, err)
	return user, token
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(0)

	user, err := svc.Register(context.Background(), RegisterInput{
		Name:     "  Ada Lovelace ",
		Email:    "ada@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, users, _ := newTestAuthService(0)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Name: "Other", Email: "ADA@example.com", Password: "password456"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, 1, users.Count())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, tokens := newTestAuthService(0)
	registerAndLogin(t, svc, "ada@example.com")
	issued := tokens.Len()

	_, _, err := svc.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, issued, tokens.Len())
}

func TestLoginTokenAuthenticates(t *testing.T) {
	svc, _, _ := newTestAuthService(0)
	user, raw := registerAndLogin(t, svc, "ada@example.com")

	got, token, err := svc.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.ID, token.UserID)
	assert.Equal(t, defaultTokenName, token.Name)
	assert.Nil(t, token.ExpiresAt)
}

func TestLogoutRevokesOnlyThatToken(t *testing.T) {
	svc, _, _ := newTestAuthService(0)
	ctx := context.Background()
	_, first := registerAndLogin(t, svc, "ada@example.com")
	_, second, err := svc.Login(ctx, "ada@example.com", "password123")
	require.NoError(t, err)

	_, token, err := svc.Authenticate(ctx, first)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, token.ID))

	_, _, err = svc.Authenticate(ctx, first)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = svc.Authenticate(ctx, second)
	assert.NoError(t, err)

	assert.NoError(t, svc.Logout(ctx, token.ID), "revoking twice is not an error")
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	svc, _, _ := newTestAuthService(time.Hour)
	_, raw := registerAndLogin(t, svc, "ada@example.com")

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err := svc.Authenticate(context.Background(), raw)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	svc, _, _ := newTestAuthService(0)
	_, raw := registerAndLogin(t, svc, "ada@example.com")

	other := NewJWTIssuer("another-secret")
	forged, err := other.Issue(types.AccessToken{ID: "3f1d2c8e-1111-4a2b-9c3d-000000000001", UserID: 1, CreatedAt: time.Now()})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":     "not-a-jwt",
		"wrong key":   forged,
		"truncated":   raw[:len(raw)-4],
		"unknown jti": mustIssue(t, types.AccessToken{ID: "3f1d2c8e-1111-4a2b-9c3d-000000000002", UserID: 1, CreatedAt: time.Now()}),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func mustIssue(t *testing.T, token types.AccessToken) string {
	t.Helper()
	raw, err := NewJWTIssuer(testSecret).Issue(token)
	require.NoError(t, err)
	return raw
}
