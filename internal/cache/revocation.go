package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "auth:revoked:"

// Revoker stores revoked token ids with a TTL matching the token's remaining
// lifetime, so the set never outgrows the live tokens.
type Revoker struct {
	client redis.UniversalClient
}

func NewRevoker(client redis.UniversalClient) *Revoker {
	return &Revoker{client: client}
}

func (r *Revoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedPrefix+jti, "1", ttl).Err()
}

func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
