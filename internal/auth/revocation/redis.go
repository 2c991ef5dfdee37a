package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lockbox:revoked:"

// Redis is a Registry shared by every instance pointed at the same server.
// Entries expire through the key TTL.
type Redis struct {
	client redis.UniversalClient
	prefix string

	Now func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{
		client: client,
		prefix: redisKeyPrefix,
		Now:    time.Now,
	}
}

func (r *Redis) key(token string) string {
	return r.prefix + cryptox.FingerprintToken(token)
}

func (r *Redis) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	now := r.Now()
	ttl := evictAt(expiresAt, now).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}

	if err := r.client.Set(ctx, r.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: redis set: %w", err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: redis exists: %w", err)
	}
	return n > 0, nil
}

// Ping reports whether the backing server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
