package sessions

import "time"

// Session is one logical authentication grant. A session is scoped to
// exactly one audience and owns every token minted under it. Sessions are
// never mutated after creation except for revocation state.
type Session struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	Audience  string    `json:"audience"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"createdAt"`
	Revoked   bool      `json:"revoked"`
}

// TokenKind distinguishes the two token rows minted per pair.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// TokenRecord is one row per minted token, owned by exactly one Session.
// Revoked flips false→true exactly once and rows are never deleted; they
// are retained for audit and replay detection.
type TokenRecord struct {
	ID           string    `json:"id"` // the jti claim of the signed token
	SessionID    string    `json:"sessionId"`
	Kind         TokenKind `json:"kind"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Revoked      bool      `json:"revoked"`
	SupersededBy string    `json:"supersededBy,omitempty"` // set on the old refresh row during rotation
	CreatedAt    time.Time `json:"createdAt"`
}

// TokenStatus is the result of a revocation lookup.
type TokenStatus struct {
	TokenID   string
	SessionID string
	Kind      TokenKind
	Revoked   bool
}
