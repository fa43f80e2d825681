package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/IDEA-on-Action/mcp-auth/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyVerification stores the verified token for downstream handlers
const ContextKeyVerification ContextKey = "verification"

// RequireBearerToken validates the Authorization bearer token and injects
// the verification into the request context. Invalid, expired and revoked
// tokens all fail with the same small outcome set; only "expired" is
// distinguished so legitimate clients know to refresh rather than
// re-authenticate.
func (s *Server) RequireBearerToken(expectedAudience string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				writeJSONError(w, "unauthenticated", "missing bearer token", http.StatusUnauthorized)
				return
			}

			verification, err := s.tokens.Verify(r.Context(), rawToken, expectedAudience)
			if err != nil {
				writeJSONError(w, "server_error", "session store unavailable", http.StatusServiceUnavailable)
				return
			}

			switch verification.Status {
			case token.StatusValid:
			case token.StatusExpired:
				writeJSONError(w, "expired", "token expired, refresh and retry", http.StatusUnauthorized)
				return
			default:
				writeJSONError(w, "unauthenticated", "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyVerification, verification)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireScope gates a route on a scope of the verified token. Runs after
// RequireBearerToken.
func (s *Server) RequireScope(requiredScope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			verification, ok := VerificationFromContext(r.Context())
			if !ok {
				writeJSONError(w, "unauthenticated", "missing bearer token", http.StatusUnauthorized)
				return
			}
			if decision := s.evaluator.CheckScope(verification.Scopes, requiredScope); !decision.Allowed {
				writeJSONError(w, "forbidden", decision.Reason, http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}
}

// VerificationFromContext returns the verified token stored by
// RequireBearerToken.
func VerificationFromContext(ctx context.Context) (*token.Verification, bool) {
	verification, ok := ctx.Value(ContextKeyVerification).(*token.Verification)
	return verification, ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	rawToken := strings.TrimSpace(header[len(prefix):])
	return rawToken, rawToken != ""
}
