package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the idempotency window with a SET NX EX reservation so
// concurrent submissions racing within the window are caught even across
// multiple service instances.
type Redis struct {
	client *redis.Client
}

// NewRedis connects an idempotency cache to the given redis address.
func NewRedis(addr string) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Reserve sets the key if absent. A false result means another submission
// holds the reservation.
func (r *Redis) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, "1", ttl).Result()
}

// Release drops a reservation early, used when the guarded operation fails
// so a retry is not misread as a duplicate.
func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
