package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("llmclient: invalid JSON from model")

// LLMClient is the text-generation capability used by the orchestrator.
//
// GenerateJSON is the structured mode: one shot, the returned bytes are the
// model's JSON object. GenerateJSONStream is the streaming mode: narrative
// fragments are pushed to onChunk as they arrive and the structured object
// is returned only after the provider stream closes. Cross-cutting concerns
// (retries, rate limiting, logging) are applied via Middleware.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error)
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
