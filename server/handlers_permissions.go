package server

import (
	"encoding/json"
	"net/http"

	"github.com/IDEA-on-Action/mcp-auth/permissions"
)

// permissionCheckRequest is what UI/API gates send. The caller supplies
// the already-resolved role and plan tier; scope checks run against the
// bearer token on the request.
type permissionCheckRequest struct {
	Check    string               `json:"check"` // "role" | "plan" | "feature" | "scope"
	Role     permissions.Role     `json:"role,omitempty"`
	Verb     string               `json:"verb,omitempty"`
	Plan     permissions.PlanTier `json:"plan,omitempty"`
	Required permissions.PlanTier `json:"required,omitempty"`
	Feature  string               `json:"feature,omitempty"`
	Scope    string               `json:"scope,omitempty"`
}

// PermissionsCheckHandler is the gate backend: it always answers 200 with
// a Decision. A denial is a business outcome rendered by the caller as an
// upgrade prompt or 403, never an error here.
func (s *Server) PermissionsCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "failed to parse request body", http.StatusBadRequest)
			return
		}

		var decision permissions.Decision
		switch req.Check {
		case "role":
			decision = s.evaluator.CheckRole(req.Role, req.Verb)
		case "plan":
			decision = s.evaluator.CheckPlan(req.Plan, req.Required)
		case "feature":
			decision = s.evaluator.CheckFeature(req.Plan, req.Feature)
		case "scope":
			verification, ok := VerificationFromContext(r.Context())
			if !ok {
				writeJSONError(w, "unauthenticated", "missing bearer token", http.StatusUnauthorized)
				return
			}
			decision = s.evaluator.CheckScope(verification.Scopes, req.Scope)
		default:
			writeJSONError(w, "invalid_request", "check must be role, plan, feature or scope", http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusOK, decision)
	}
}
