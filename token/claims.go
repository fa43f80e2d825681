package token

import (
	"strings"
	"time"

	"github.com/IDEA-on-Action/mcp-auth/sessions"
)

// Claims is the decoded claim set of a signed token. Until the signature
// has been verified, every field is attacker-controlled input.
type Claims struct {
	Issuer    string
	Subject   string
	Audience  string
	Scopes    []string // space-delimited "scope" claim on the wire
	SessionID string   // "sid"
	TokenID   string   // "jti", used for revocation lookups and rotation pointers
	Kind      sessions.TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ScopeString returns the wire form of the scope claim.
func (c Claims) ScopeString() string {
	return strings.Join(c.Scopes, " ")
}

// HasScope reports whether the claim set grants a specific scope.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
