package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another instance")

// release only deletes the key when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client redis.UniversalClient
	prefix string
}

func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client, prefix: "lock:"}
}

// Acquire takes the named lock for ttl and returns its release function.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
