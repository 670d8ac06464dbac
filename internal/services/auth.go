package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenName = "auth-token"

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService registers users and manages their bearer tokens.
type AuthService struct {
	users    UserRepository
	tokens   TokenStore
	issuer   TokenIssuer
	tokenTTL time.Duration
	hashCost int
	now      func() time.Time
}

// NewAuthService constructs an AuthService. A zero tokenTTL issues tokens
// that stay valid until logout.
func NewAuthService(users UserRepository, tokens TokenStore, issuer TokenIssuer, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		issuer:   issuer,
		tokenTTL: tokenTTL,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Register hashes the password and creates the user.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and issues a new token.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	now := s.now().UTC()
	token := types.AccessToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      defaultTokenName,
		CreatedAt: now,
		ExpiresAt: expiryFrom(now, s.tokenTTL),
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return types.User{}, "", fmt.Errorf("save token: %w", err)
	}

	signed, err := s.issuer.Issue(token)
	if err != nil {
		_ = s.tokens.Delete(ctx, token.ID)
		return types.User{}, "", fmt.Errorf("sign token: %w", err)
	}
	return user, signed, nil
}

// Logout revokes the token with the given id.
func (s *AuthService) Logout(ctx context.Context, tokenID string) error {
	if err := s.tokens.Delete(ctx, tokenID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Authenticate resolves a raw bearer token to its user. Any token that is
// malformed, badly signed, expired or revoked yields ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (types.User, types.AccessToken, error) {
	claims, err := s.issuer.Parse(raw)
	if err != nil {
		return types.User{}, types.AccessToken{}, ErrUnauthenticated
	}
	if _, err := uuid.Parse(claims.TokenID); err != nil {
		return types.User{}, types.AccessToken{}, ErrUnauthenticated
	}

	token, err := s.tokens.Get(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.AccessToken{}, ErrUnauthenticated
		}
		return types.User{}, types.AccessToken{}, fmt.Errorf("load token: %w", err)
	}
	if token.UserID != claims.UserID {
		return types.User{}, types.AccessToken{}, ErrUnauthenticated
	}
	if token.ExpiresAt != nil && !s.now().Before(*token.ExpiresAt) {
		return types.User{}, types.AccessToken{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.AccessToken{}, ErrUnauthenticated
		}
		return types.User{}, types.AccessToken{}, fmt.Errorf("load user: %w", err)
	}
	return user, token, nil
}
