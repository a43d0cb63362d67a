// Package ratelimit enforces a sliding-window request budget per
// (client, operation) pair. Two implementations share the contract: an
// in-process one for single-node deployments and tests, and a Redis one
// for fleets.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one Allow call. When Allowed is false,
// RetryAfter says how long the client should wait before trying again.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

type Limiter interface {
	// Allow records the request against the (client, operation) window and
	// reports whether it fit. Denied requests are not recorded.
	Allow(ctx context.Context, clientID, operation string) (Decision, error)
}

func bucketKey(clientID, operation string) string {
	return fmt.Sprintf("%s:%s", clientID, operation)
}
