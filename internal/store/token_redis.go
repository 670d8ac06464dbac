package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopcat/apiserver/types"
)

const redisTokenKeyPrefix = "shopcat:access_token:"

// RedisTokenStore keeps the registry of issued access tokens in Redis.
// Tokens with an expiry are stored with a matching key TTL.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, token types.AccessToken) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if token.ExpiresAt != nil {
		ttl = time.Until(*token.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	return s.client.Set(ctx, redisTokenKeyPrefix+token.ID, payload, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, id string) (types.AccessToken, error) {
	payload, err := s.client.Get(ctx, redisTokenKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.AccessToken{}, ErrNotFound
		}
		return types.AccessToken{}, err
	}

	var token types.AccessToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return types.AccessToken{}, err
	}
	return token, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.Del(ctx, redisTokenKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}
