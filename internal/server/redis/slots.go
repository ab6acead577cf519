package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlotRegistry holds applet account slots in redis so that every broker
// process sees the same reservations.
type SlotRegistry struct {
	redis *Redis
}

func NewSlotRegistry(r *Redis) (*SlotRegistry, error) {
	if !r.Enabled() {
		return nil, errors.New("redis slot registry requires a redis host")
	}
	return &SlotRegistry{redis: r}, nil
}

func slotKey(accountID string) string {
	return fmt.Sprintf("applet:slot:%s", accountID)
}

func (s *SlotRegistry) Acquire(ctx context.Context, accountID, holder string, ttl time.Duration) (bool, error) {
	return s.redis.client.SetNX(ctx, slotKey(accountID), holder, ttl).Result()
}

func (s *SlotRegistry) Release(ctx context.Context, accountID string) (bool, error) {
	deleted, err := s.redis.client.Del(ctx, slotKey(accountID)).Result()
	if err != nil {
		return false, err
	}
	return deleted > 0, nil
}

// Holder returns who holds the slot for accountID, or an empty string.
func (s *SlotRegistry) Holder(ctx context.Context, accountID string) (string, error) {
	holder, err := s.redis.client.Get(ctx, slotKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return holder, err
}
