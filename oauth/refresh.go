// Package oauth schedules periodic token refreshes. The schedule is a plain
// interval independent of the token's reported lifetime; a failed attempt is
// logged and the next tick tries again with whatever tokens are current.
package oauth

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is used when StartRefresher gets a non-positive interval.
const DefaultInterval = 5 * time.Hour

// attemptTimeout bounds a single refresh call.
const attemptTimeout = 30 * time.Second

// RefreshFunc performs one refresh.
type RefreshFunc func(ctx context.Context) error

// StartRefresher launches a goroutine calling fn every interval until ctx is
// cancelled. The first call happens one interval after start. Attempts never
// overlap.
func StartRefresher(ctx context.Context, interval time.Duration, fn RefreshFunc) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			ctx2, cancel := context.WithTimeout(ctx, attemptTimeout)
			err := fn(ctx2)
			cancel()
			if err != nil {
				slog.Warn("scheduled token refresh failed; keeping current tokens", slog.Any("err", err))
				continue
			}
			slog.Debug("scheduled token refresh complete", slog.Duration("next_in", interval))
		}
	}()
	return done
}
