// Package auth supplies bearer tokens for Placemark API requests.
//
// The client asks a TokenSource for a token before every request and attaches it
// as "Authorization: Bearer <token>". An empty token sends the request anonymously.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyAccessToken is the default Redis key holding the access token.
const RedisKeyAccessToken = "placemark:auth:access_token"

// ErrEmptyToken is returned when saving an empty token.
var ErrEmptyToken = errors.New("auth: empty token")

// TokenSource returns the access token for the current user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, e.g. from configuration.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// RedisStore keeps the access token in Redis so that every client process of a
// deployment signs requests with the same session.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a token store using RedisKeyAccessToken.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		key:   RedisKeyAccessToken,
	}
}

// WithKey returns a copy of the store using key, for per-user tokens.
func (s *RedisStore) WithKey(key string) *RedisStore {
	return &RedisStore{redis: s.redis, key: key}
}

// Save stores token. A ttl <= 0 keeps it until Clear.
func (s *RedisStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return ErrEmptyToken
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

// Token implements TokenSource. It returns "" when no token is stored.
func (s *RedisStore) Token(ctx context.Context) (string, error) {
	token, err := s.redis.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return token, nil
}

// Clear removes the stored token, e.g. after the API answered 401.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
