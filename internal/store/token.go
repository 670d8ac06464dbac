package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopcat/apiserver/types"
)

// TokenRepository keeps the registry of issued access tokens in PostgreSQL.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Save(ctx context.Context, token types.AccessToken) error {
	const query = `
		INSERT INTO access_tokens (id, user_id, name, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.Name, token.CreatedAt, token.ExpiresAt)
	return err
}

func (r *TokenRepository) Get(ctx context.Context, id string) (types.AccessToken, error) {
	const query = `
		SELECT id, user_id, name, created_at, expires_at
		FROM access_tokens
		WHERE id = $1`
	var token types.AccessToken
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.Name,
		&token.CreatedAt,
		&token.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AccessToken{}, ErrNotFound
		}
		return types.AccessToken{}, err
	}
	return token, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM access_tokens WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
