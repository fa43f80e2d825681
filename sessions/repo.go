package sessions

import "context"

// Store is the collaborator boundary to the durable session/token record
// store. Every method is a single atomic operation: the token core never
// issues read-modify-write sequences against it, so the store alone
// enforces the single-use-refresh invariant under concurrent callers.
//
// Implementations must distinguish "record not found" (internalerrors.ErrNotFound)
// and "rotation lost the race" (internalerrors.ErrAlreadyRevoked) from
// infrastructure failures, which surface as ErrStoreUnavailable wraps.
type Store interface {
	// CreateSessionWithTokens persists a new session and its access/refresh
	// pair in one atomic operation. A session must never be observable
	// without its paired tokens.
	CreateSessionWithTokens(ctx context.Context, session *Session, access, refresh *TokenRecord) error

	// GetTokenStatus returns the current revocation status for a token id.
	GetTokenStatus(ctx context.Context, tokenID string) (*TokenStatus, error)

	// GetSession returns the session a token chain belongs to.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// RotateRefreshToken atomically marks the old refresh row revoked (with
	// SupersededBy set to the new refresh row) and inserts the new pair
	// under the same session, conditional on the old row not already being
	// revoked. Losing the race returns ErrAlreadyRevoked.
	RotateRefreshToken(ctx context.Context, oldTokenID string, access, refresh *TokenRecord) error

	// RevokeToken marks one token revoked. Returns false without error when
	// the token is unknown or already revoked (idempotent no-op).
	RevokeToken(ctx context.Context, tokenID string) (bool, error)

	// RevokeSession marks the session and every token under it revoked,
	// returning the number of token rows flipped.
	RevokeSession(ctx context.Context, sessionID string) (int, error)
}
