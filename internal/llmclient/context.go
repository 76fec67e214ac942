package llmclient

import "context"

type phaseKey struct{}

// WithPhase tags the context with the conversation phase driving the call.
// The fake client and the logging middleware read it back.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, phaseKey{}, phase)
}

func PhaseFrom(ctx context.Context) string {
	if v, ok := ctx.Value(phaseKey{}).(string); ok {
		return v
	}
	return ""
}
