package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrSessionExpired is the boundary error for an invalid or expired
// session token. It is propagated, never generated by the orchestrator.
var ErrSessionExpired = errors.New("auth: session expired")

// SessionVerifier resolves a bearer token to a user id. The production
// implementation sits in front of this service; locally a static token
// map stands in.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// StaticVerifier authenticates against a fixed token->user map. An empty
// map accepts every request as the anonymous "local" user, which keeps
// development setups zero-config.
type StaticVerifier struct {
	Tokens map[string]string
}

func (v StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if len(v.Tokens) == 0 {
		return "local", nil
	}
	if user, ok := v.Tokens[token]; ok && user != "" {
		return user, nil
	}
	return "", ErrSessionExpired
}

type userKey struct{}

// UserFrom returns the authenticated user id stored by Auth.
func UserFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userKey{}).(string); ok {
		return v
	}
	return ""
}

// Auth enforces the session boundary: a missing or expired token gets a
// 401 with the SESSION_EXPIRED code before any orchestrator work starts.
func Auth(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			userID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"code":"SESSION_EXPIRED","message":"session expired"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	// Websocket clients cannot set headers from browsers; accept a query
	// parameter fallback.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
