// Package ratelimit implements the per-key cooldown used by the resend
// endpoint: after a key is allowed once, further attempts are refused until
// the cooldown has elapsed.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of Allow. Remaining is set when Allowed is false.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
}

// RemainingSeconds rounds Remaining up to whole seconds.
func (d Decision) RemainingSeconds() int {
	s := d.Remaining / time.Second
	if d.Remaining%time.Second != 0 {
		s++
	}
	return int(s)
}

type Limiter interface {
	// Allow claims key for one cooldown period if it is free.
	Allow(ctx context.Context, key string) Decision
	Close() error
}
