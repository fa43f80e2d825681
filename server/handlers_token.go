package server

import (
	"net/http"
	"strings"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/token"
)

// Grant types accepted by the token endpoint.
const (
	GrantTypeAssertion    = "assertion"
	GrantTypeRefreshToken = "refresh_token"
)

// introspection is the wire shape of the verify operation.
type introspection struct {
	Active   bool   `json:"active"`
	Status   string `json:"status"`
	Sub      string `json:"sub,omitempty"`
	Aud      string `json:"aud,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Sid      string `json:"sid,omitempty"`
	Jti      string `json:"jti,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// TokenHandler mints token pairs. The assertion grant authenticates the
// calling service against the client registry and the end user against an
// upstream identity assertion; the refresh grant rotates an existing pair.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		switch r.FormValue("grant_type") {
		case GrantTypeAssertion:
			s.handleAssertionGrant(w, r)
		case GrantTypeRefreshToken:
			s.handleRefreshGrant(w, r)
		default:
			writeJSONError(w, "unsupported_grant_type", "grant_type must be assertion or refresh_token", http.StatusBadRequest)
		}
	}
}

func (s *Server) handleAssertionGrant(w http.ResponseWriter, r *http.Request) {
	client, err := s.clients.Get(r.FormValue("client_id"))
	if err != nil {
		writeJSONError(w, "invalid_client", "unknown client", http.StatusUnauthorized)
		return
	}
	if err := client.VerifySecret(r.FormValue("client_secret")); err != nil {
		writeJSONError(w, "invalid_client", "unknown client", http.StatusUnauthorized)
		return
	}

	requestedScopes := r.FormValue("scope")
	if err := client.ValidateScopes(requestedScopes); err != nil {
		writeJSONError(w, "invalid_scope", "scope not allowed for client", http.StatusBadRequest)
		return
	}

	verifier, ok := s.providers[r.FormValue("provider")]
	if !ok {
		writeJSONError(w, "invalid_request", "unknown identity provider", http.StatusBadRequest)
		return
	}
	assertion, err := verifier.VerifyAssertion(r.Context(), r.FormValue("assertion"))
	if err != nil {
		writeJSONError(w, "invalid_grant", "invalid identity assertion", http.StatusUnauthorized)
		return
	}

	pair, err := s.tokens.Issue(r.Context(), assertion.Subject, client.Audience, splitScope(requestedScopes))
	if err != nil {
		s.writeTokenError(w, err)
		return
	}
	writeTokenPair(w, pair)
}

func (s *Server) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.FormValue("refresh_token")
	if refreshToken == "" {
		writeJSONError(w, "invalid_request", "refresh_token parameter is required", http.StatusBadRequest)
		return
	}

	pair, err := s.tokens.Refresh(r.Context(), refreshToken)
	if err != nil {
		s.writeTokenError(w, err)
		return
	}
	writeTokenPair(w, pair)
}

// IntrospectHandler verifies a presented token and reports its status.
func (s *Server) IntrospectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		rawToken := r.FormValue("token")
		if rawToken == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		verification, err := s.tokens.Verify(r.Context(), rawToken, r.FormValue("audience"))
		if err != nil {
			writeJSONError(w, "server_error", "session store unavailable", http.StatusServiceUnavailable)
			return
		}

		resp := introspection{
			Active: verification.Status == token.StatusValid,
			Status: string(verification.Status),
		}
		if resp.Active {
			resp.Sub = verification.Subject
			resp.Aud = verification.Audience
			resp.Scope = (token.Claims{Scopes: verification.Scopes}).ScopeString()
			resp.Sid = verification.SessionID
			resp.Jti = verification.TokenID
			resp.Degraded = verification.Degraded
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RevokeHandler revokes one token by id, or a whole session.
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse form data", http.StatusBadRequest)
			return
		}

		if sessionID := r.FormValue("session_id"); sessionID != "" {
			count, err := s.tokens.RevokeSession(r.Context(), sessionID)
			if internalerrors.Is(err, internalerrors.ErrNotFound) {
				writeJSON(w, http.StatusOK, map[string]any{"revoked": false})
				return
			}
			if err != nil {
				writeJSONError(w, "server_error", "session store unavailable", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"revoked": count > 0, "revoked_count": count})
			return
		}

		tokenID := r.FormValue("token_id")
		if tokenID == "" {
			writeJSONError(w, "invalid_request", "token_id or session_id parameter is required", http.StatusBadRequest)
			return
		}

		revoked, err := s.tokens.Revoke(r.Context(), tokenID)
		if err != nil {
			writeJSONError(w, "server_error", "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revoked": revoked})
	}
}

// writeTokenError maps core errors onto the stable outcome set: a caller
// learns "refresh and retry" vs "re-authenticate" vs "server error" and
// nothing else.
func (s *Server) writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case internalerrors.Is(err, internalerrors.ErrTokenExpired):
		writeJSONError(w, "invalid_grant", "token expired", http.StatusUnauthorized)
	case internalerrors.Is(err, internalerrors.ErrSignatureInvalid),
		internalerrors.Is(err, internalerrors.ErrWrongTokenKind),
		internalerrors.Is(err, internalerrors.ErrMissingTokenID),
		internalerrors.Is(err, internalerrors.ErrAlreadyRevoked):
		writeJSONError(w, "invalid_grant", "invalid token", http.StatusUnauthorized)
	case internalerrors.Is(err, internalerrors.ErrStoreUnavailable):
		writeJSONError(w, "server_error", "session store unavailable", http.StatusServiceUnavailable)
	default:
		writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
	}
}

func writeTokenPair(w http.ResponseWriter, pair *token.TokenPair) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, pair)
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}
