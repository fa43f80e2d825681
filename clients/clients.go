// Package clients holds the registry of services allowed to call the
// token endpoint. Each client is registered for exactly one audience and
// a fixed allowed-scope set; secrets are stored as bcrypt hashes.
package clients

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
)

type Client struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Audience    string   `json:"audience"` // the one service tokens issued through this client are scoped to
	SecretHash  string   `json:"-"`
	Scopes      []string `json:"scopes"` // allowed scopes for this client
}

// HasScope checks if the client may request a specific scope
func (c *Client) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks that every requested scope (space-delimited) is
// allowed for this client. Empty input is fine; the issuer falls back to
// its minimal default scope.
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return internalerrors.ErrInvalidScope
		}
	}
	return nil
}

// VerifySecret compares a presented secret against the stored hash.
func (c *Client) VerifySecret(secret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return internalerrors.ErrInvalidClientSecret
	}
	return nil
}

// HashSecret hashes a client secret for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
