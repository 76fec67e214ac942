package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, logging).
type Middleware func(LLMClient) LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner LLMClient, mws ...Middleware) LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// Retry retries both generation modes up to maxAttempts with exponential
// backoff starting at baseDelay. PermanentError aborts immediately; so does
// context cancellation. Streamed retries only replay after a failed attempt,
// so the caller must tolerate duplicate onChunk text across attempts.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next LLMClient) LLMClient {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next LLMClient
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return r.attempt(ctx, func() (json.RawMessage, error) {
		return r.next.GenerateJSON(ctx, prompt, input)
	})
}

func (r *retrying) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	return r.attempt(ctx, func() (json.RawMessage, error) {
		return r.next.GenerateJSONStream(ctx, prompt, input, onChunk)
	})
}

func (r *retrying) attempt(ctx context.Context, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		// If it's a permanent error, do not retry.
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return nil, err
		}
		last = err
		// Stop immediately if the context is canceled.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return nil, last
}

// -------- Logging --------

// WithLogging logs request size and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next LLMClient) LLMClient {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next LLMClient
	log  *log.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	l.log.Printf("LLM request (%s): %d bytes", PhaseFrom(ctx), len(prompt)+len(in))
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", PhaseFrom(ctx), err)
	}
	return raw, err
}

func (l *logging) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	l.log.Printf("LLM stream request (%s): %d bytes", PhaseFrom(ctx), len(prompt)+len(in))
	start := time.Now()
	raw, err := l.next.GenerateJSONStream(ctx, prompt, input, onChunk)
	if err != nil {
		l.log.Printf("LLM stream error (%s): %v", PhaseFrom(ctx), err)
		return nil, err
	}
	l.log.Printf("LLM stream done (%s): %d bytes in %s", PhaseFrom(ctx), len(raw), time.Since(start).Round(time.Millisecond))
	return raw, nil
}
