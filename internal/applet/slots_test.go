package applet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestMemorySlotRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		r := NewMemorySlotRegistry()
		t.Cleanup(func() { _ = r.Close() })

		ok, err := r.Acquire(ctx, "js-1", "token-a", time.Minute)
		assert.NilError(t, err)
		assert.Assert(t, ok)

		ok, err = r.Acquire(ctx, "js-1", "token-b", time.Minute)
		assert.NilError(t, err)
		assert.Assert(t, !ok)
		assert.Equal(t, r.Holder("js-1"), "token-a")
		assert.Equal(t, r.Len(), 1)

		released, err := r.Release(ctx, "js-1")
		assert.NilError(t, err)
		assert.Assert(t, released)

		released, err = r.Release(ctx, "js-1")
		assert.NilError(t, err)
		assert.Assert(t, !released)
		assert.Equal(t, r.Holder("js-1"), "")
	})

	t.Run("slots expire", func(t *testing.T) {
		r := NewMemorySlotRegistry()
		t.Cleanup(func() { _ = r.Close() })

		ok, err := r.Acquire(ctx, "js-1", "token-a", 20*time.Millisecond)
		assert.NilError(t, err)
		assert.Assert(t, ok)

		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, r.Len(), 0)

		released, err := r.Release(ctx, "js-1")
		assert.NilError(t, err)
		assert.Assert(t, !released)

		ok, err = r.Acquire(ctx, "js-1", "token-b", time.Minute)
		assert.NilError(t, err)
		assert.Assert(t, ok)
		assert.Equal(t, r.Holder("js-1"), "token-b")
	})

	t.Run("one holder under contention", func(t *testing.T) {
		r := NewMemorySlotRegistry()
		t.Cleanup(func() { _ = r.Close() })

		var wg sync.WaitGroup
		results := make([]bool, 20)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := r.Acquire(ctx, "js-1", fmt.Sprintf("token-%d", i), time.Minute)
				assert.Check(t, err == nil)
				results[i] = ok
			}(i)
		}
		wg.Wait()

		var acquired int
		for _, ok := range results {
			if ok {
				acquired++
			}
		}
		assert.Equal(t, acquired, 1)
	})
}
