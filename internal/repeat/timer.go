package repeat

import (
	"context"
	"time"

	"github.com/infrahq/broker/internal/logging"
)

// Start a goroutine which calls run, and then again every interval after the
// previous call returns. Calls never overlap. Errors from run are logged with
// name. The goroutine runs until ctx is cancelled.
func Start(ctx context.Context, name string, interval time.Duration, run func(context.Context) error) {
	call := func() {
		if ctx.Err() != nil {
			return
		}
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logging.L.Error().Err(err).Str("task", name).Msg("repeated task failed")
		}
	}

	go func() {
		call()

		for {
			timer := time.NewTimer(interval)
			select {
			case <-timer.C:
				call()
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}
