package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evregistry/backend/libs/identity"
	"evregistry/backend/services/station-registry/internal/metrics"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

// SessionGuard rejects requests without a verifiable bearer token and stores the
// resolved Principal in the request context. No token means 401; a token that does
// not verify, or a header that is not a bearer credential, means 400.
func SessionGuard(verifier TokenVerifier, m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				m.AuthOutcome("guard", "malformed_header")
				writeError(w, http.StatusBadRequest, "invalid_token", "Token is not valid")
				return
			}
			if token == "" {
				m.AuthOutcome("guard", "unauthenticated")
				writeError(w, http.StatusUnauthorized, "unauthenticated", "No token, authorization denied")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				m.AuthOutcome("guard", "invalid_token")
				logger.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				writeError(w, http.StatusBadRequest, "invalid_token", "Token is not valid")
				return
			}

			m.AuthOutcome("guard", "ok")
			ctx := WithPrincipal(r.Context(), identity.PrincipalFrom(*claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token. ok is false when a credential is present but is
// not a bearer credential; an empty token with ok=true means none was presented.
func bearerToken(header string) (token string, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", true
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	if !found {
		return "", true
	}
	return strings.TrimSpace(rest), true
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(identity.Principal)
	return p, ok
}
