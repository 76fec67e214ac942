package llmclient

import (
	"context"
	"encoding/json"
	"time"
)

// RateLimit limits request rate using a token-bucket limiter.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next LLMClient) LLMClient {
		rl := newRPSLimiter(rps, burst) // nil when disabled
		return &rateLimited{next: next, rl: rl}
	}
}

type rateLimited struct {
	next LLMClient
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

func (c *rateLimited) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSONStream(ctx, prompt, input, onChunk)
}

// rpsLimiter is a lightweight token-bucket limiter that throttles to at most
// R requests per second with an optional burst capacity.
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

// newRPSLimiter creates a limiter that allows up to rps events per second
// with a burst capacity of 'burst'. If rps <= 0, the limiter is disabled
// (Acquire becomes a no-op).
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}

	// Pre-fill bucket to allow an initial burst.
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}

	// Refill at the configured rate. If rps is fractional, the period is
	// sub-second (e.g., 1.5 rps is roughly 666ms).
	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond // safeguard
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full; drop token
				}
			case <-l.stopCh:
				return
			}
		}
	}()

	return l
}

// Acquire blocks until a token is available or the context is canceled.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// Stop terminates the limiter's refill goroutine.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}
