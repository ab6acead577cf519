// Package applet tracks the shared host accounts used by applet sessions in a
// single broker process.
package applet

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySlotRegistry holds applet account slots in process memory. Use the
// redis registry when more than one broker serves the same applet hosts.
type MemorySlotRegistry struct {
	cache *ttlcache.Cache[string, string]
}

func NewMemorySlotRegistry() *MemorySlotRegistry {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go cache.Start()

	return &MemorySlotRegistry{cache: cache}
}

func (r *MemorySlotRegistry) Acquire(_ context.Context, accountID, holder string, ttl time.Duration) (bool, error) {
	_, held := r.cache.GetOrSet(accountID, holder, ttlcache.WithTTL[string, string](ttl))
	return !held, nil
}

func (r *MemorySlotRegistry) Release(_ context.Context, accountID string) (bool, error) {
	_, released := r.cache.GetAndDelete(accountID)
	return released, nil
}

// Holder returns who holds the slot for accountID, or an empty string.
func (r *MemorySlotRegistry) Holder(accountID string) string {
	item := r.cache.Get(accountID)
	if item == nil {
		return ""
	}
	return item.Value()
}

// Len is the number of held slots.
func (r *MemorySlotRegistry) Len() int {
	r.cache.DeleteExpired()
	return r.cache.Len()
}

// Close stops the expiry goroutine.
func (r *MemorySlotRegistry) Close() error {
	r.cache.Stop()
	return nil
}
