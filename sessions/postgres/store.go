// Package postgres implements sessions.Store on PostgreSQL. Mutations that
// the interface requires to be atomic are single conditional statements or
// short transactions, so the single-use-refresh invariant is enforced by
// the database rather than by callers.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/sessions"
)

var _ sessions.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSessionWithTokens(ctx context.Context, session *sessions.Session, access, refresh *sessions.TokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "begin create session: %v", err)
	}
	defer tx.Rollback()

	const insertSession = `
INSERT INTO auth_sessions (id, subject_id, audience, scopes, created_at, revoked)
VALUES ($1, $2, $3, $4, $5, FALSE);
`
	if _, err := tx.ExecContext(ctx, insertSession,
		session.ID, session.SubjectID, session.Audience,
		strings.Join(session.Scopes, " "), session.CreatedAt); err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "insert session: %v", err)
	}

	for _, rec := range []*sessions.TokenRecord{access, refresh} {
		if err := insertToken(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "commit create session: %v", err)
	}
	return nil
}

func (s *Store) GetTokenStatus(ctx context.Context, tokenID string) (*sessions.TokenStatus, error) {
	const q = `
SELECT t.id, t.session_id, t.kind, (t.revoked OR s.revoked) AS revoked
FROM auth_tokens t
JOIN auth_sessions s ON s.id = t.session_id
WHERE t.id = $1;
`
	var status sessions.TokenStatus
	var kind string
	err := s.db.QueryRowContext(ctx, q, tokenID).Scan(&status.TokenID, &status.SessionID, &kind, &status.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.ErrNotFound
	}
	if err != nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "get token status: %v", err)
	}
	status.Kind = sessions.TokenKind(kind)
	return &status, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*sessions.Session, error) {
	const q = `
SELECT id, subject_id, audience, scopes, created_at, revoked
FROM auth_sessions
WHERE id = $1;
`
	var session sessions.Session
	var scopes string
	err := s.db.QueryRowContext(ctx, q, sessionID).Scan(
		&session.ID, &session.SubjectID, &session.Audience, &scopes, &session.CreatedAt, &session.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, internalerrors.ErrNotFound
	}
	if err != nil {
		return nil, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "get session: %v", err)
	}
	session.Scopes = strings.Fields(scopes)
	return &session, nil
}

// RotateRefreshToken flips the old refresh row and inserts the new pair in
// one transaction. The conditional UPDATE is what decides the race between
// two concurrent presentations of the same refresh token: exactly one
// caller sees a row flipped, the other gets ErrAlreadyRevoked.
func (s *Store) RotateRefreshToken(ctx context.Context, oldTokenID string, access, refresh *sessions.TokenRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "begin rotate: %v", err)
	}
	defer tx.Rollback()

	const revokeOld = `
UPDATE auth_tokens t
SET revoked = TRUE, superseded_by = $2
FROM auth_sessions s
WHERE t.id = $1 AND t.kind = 'refresh' AND t.revoked = FALSE
  AND s.id = t.session_id AND s.revoked = FALSE;
`
	result, err := tx.ExecContext(ctx, revokeOld, oldTokenID, refresh.ID)
	if err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke old refresh token: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "rotate rows affected: %v", err)
	}
	if affected == 0 {
		return rotateConflict(ctx, tx, oldTokenID)
	}

	for _, rec := range []*sessions.TokenRecord{access, refresh} {
		if err := insertToken(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "commit rotate: %v", err)
	}
	return nil
}

func (s *Store) RevokeToken(ctx context.Context, tokenID string) (bool, error) {
	const q = `
UPDATE auth_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE;
`
	result, err := s.db.ExecContext(ctx, q, tokenID)
	if err != nil {
		return false, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke token: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke rows affected: %v", err)
	}
	return affected > 0, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "begin revoke session: %v", err)
	}
	defer tx.Rollback()

	const revokeSession = `
UPDATE auth_sessions SET revoked = TRUE WHERE id = $1;
`
	result, err := tx.ExecContext(ctx, revokeSession, sessionID)
	if err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke session: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke session rows affected: %v", err)
	}
	if affected == 0 {
		return 0, internalerrors.ErrNotFound
	}

	const revokeTokens = `
UPDATE auth_tokens SET revoked = TRUE WHERE session_id = $1 AND revoked = FALSE;
`
	result, err = tx.ExecContext(ctx, revokeTokens, sessionID)
	if err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke session tokens: %v", err)
	}
	revoked, err := result.RowsAffected()
	if err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "revoke session tokens rows affected: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "commit revoke session: %v", err)
	}
	return int(revoked), nil
}

func insertToken(ctx context.Context, tx *sql.Tx, rec *sessions.TokenRecord) error {
	const q = `
INSERT INTO auth_tokens (id, session_id, kind, expires_at, revoked, superseded_by, created_at)
VALUES ($1, $2, $3, $4, FALSE, NULL, $5);
`
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, q, rec.ID, rec.SessionID, string(rec.Kind), rec.ExpiresAt, createdAt); err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "insert token %s: %v", rec.Kind, err)
	}
	return nil
}

// rotateConflict classifies a zero-row rotation: unknown token id vs a
// refresh token that has already been spent or belongs to a dead session.
func rotateConflict(ctx context.Context, tx *sql.Tx, tokenID string) error {
	const q = `
SELECT 1 FROM auth_tokens WHERE id = $1 AND kind = 'refresh';
`
	var one int
	err := tx.QueryRowContext(ctx, q, tokenID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return internalerrors.ErrNotFound
	}
	if err != nil {
		return internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "classify rotate conflict: %v", err)
	}
	return internalerrors.ErrAlreadyRevoked
}
