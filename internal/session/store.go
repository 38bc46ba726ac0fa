package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenPrefix   = "session:v1:token:"
	accountPrefix = "session:v1:account:"
)

// ErrSessionNotFound occurs when a token is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Store maps opaque session tokens to account identifiers. It replaces the
// process-global session map: lookups resolve the caller, Invalidate revokes
// every session an account holds.
type Store interface {
	Create(ctx context.Context, accountPhone string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Invalidate(ctx context.Context, accountPhone string) error
}

// RedisStore keeps sessions in Redis with a TTL, plus a per-account token set
// so invalidation can find them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Create issues a fresh opaque token for the account.
func (s *RedisStore) Create(ctx context.Context, accountPhone string) (string, error) {
	token := uuid.NewString()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenPrefix+token, accountPhone, s.ttl)
	pipe.SAdd(ctx, accountPrefix+accountPhone, token)
	pipe.Expire(ctx, accountPrefix+accountPhone, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

// Lookup resolves a token to the owning account.
func (s *RedisStore) Lookup(ctx context.Context, token string) (string, error) {
	phone, err := s.client.Get(ctx, tokenPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return phone, nil
}

// Invalidate revokes every session the account holds.
func (s *RedisStore) Invalidate(ctx context.Context, accountPhone string) error {
	setKey := accountPrefix + accountPhone
	tokens, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, tokenPrefix+token)
	}
	keys = append(keys, setKey)
	return s.client.Del(ctx, keys...).Err()
}
