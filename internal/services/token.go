package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopcat/apiserver/types"
)

// TokenStore is the registry of live access tokens. A token whose record
// is missing is treated as revoked.
type TokenStore interface {
	Save(ctx context.Context, token types.AccessToken) error
	Get(ctx context.Context, id string) (types.AccessToken, error)
	Delete(ctx context.Context, id string) error
}

// TokenClaims is what a bearer token asserts about its holder.
type TokenClaims struct {
	TokenID string
	UserID  int
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(token types.AccessToken) (string, error)
	Parse(raw string) (TokenClaims, error)
}

// JWTIssuer issues HS256-signed JWTs carrying the token id in "jti" and
// the user id in "sub".
type JWTIssuer struct {
	secret []byte
}

func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret)}
}

func (j *JWTIssuer) Issue(token types.AccessToken) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       token.ID,
		Subject:  strconv.Itoa(token.UserID),
		IssuedAt: jwt.NewNumericDate(token.CreatedAt),
	}
	if token.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*token.ExpiresAt)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTIssuer) Parse(raw string) (TokenClaims, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return TokenClaims{}, err
	}
	if !token.Valid {
		return TokenClaims{}, errors.New("invalid token")
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return TokenClaims{}, errors.New("invalid subject")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return TokenClaims{}, errors.New("missing token id")
	}
	return TokenClaims{TokenID: claims.ID, UserID: userID}, nil
}

func expiryFrom(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	expires := now.Add(ttl)
	return &expires
}
