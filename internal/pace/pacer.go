// Package pace implements a token-paced gate around calls to the external
// query service, ensuring a minimum interval between consecutive calls
// process-wide.
package pace

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive external-query calls by at least a configured
// interval. A single instance is shared by every discovery stage in the
// run; it serializes timing only, never the callers' data.
type Pacer struct {
	limiter *rate.Limiter
}

// New creates a Pacer with the given minimum inter-call interval.
// A non-positive interval disables pacing.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call slot opens or the context ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace wait: %w", err)
	}
	return nil
}
