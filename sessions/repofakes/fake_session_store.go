package repofakes

import (
	"context"
	"sync"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/sessions"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

// FakeSessionStore is an in-memory Store for tests. All operations take the
// same lock, giving the atomicity the interface demands.
type FakeSessionStore struct {
	sessions map[string]*sessions.Session
	tokens   map[string]*sessions.TokenRecord
	lock     sync.Mutex

	// FailWith, when set, is returned from every store call. Lets tests
	// exercise the degrade-open / fail-closed policies.
	FailWith error
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		sessions: make(map[string]*sessions.Session),
		tokens:   make(map[string]*sessions.TokenRecord),
	}
}

func (s *FakeSessionStore) CreateSessionWithTokens(_ context.Context, session *sessions.Session, access, refresh *sessions.TokenRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}

	sessionCopy := *session
	accessCopy := *access
	refreshCopy := *refresh
	s.sessions[session.ID] = &sessionCopy
	s.tokens[access.ID] = &accessCopy
	s.tokens[refresh.ID] = &refreshCopy
	return nil
}

func (s *FakeSessionStore) GetTokenStatus(_ context.Context, tokenID string) (*sessions.TokenStatus, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return nil, s.FailWith
	}

	rec, ok := s.tokens[tokenID]
	if !ok {
		return nil, internalerrors.ErrNotFound
	}
	return &sessions.TokenStatus{
		TokenID:   rec.ID,
		SessionID: rec.SessionID,
		Kind:      rec.Kind,
		Revoked:   rec.Revoked,
	}, nil
}

func (s *FakeSessionStore) GetSession(_ context.Context, sessionID string) (*sessions.Session, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return nil, s.FailWith
	}

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, internalerrors.ErrNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (s *FakeSessionStore) RotateRefreshToken(_ context.Context, oldTokenID string, access, refresh *sessions.TokenRecord) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}

	old, ok := s.tokens[oldTokenID]
	if !ok {
		return internalerrors.ErrNotFound
	}
	if old.Revoked {
		return internalerrors.ErrAlreadyRevoked
	}
	if session, ok := s.sessions[old.SessionID]; !ok || session.Revoked {
		return internalerrors.ErrAlreadyRevoked
	}

	old.Revoked = true
	old.SupersededBy = refresh.ID

	accessCopy := *access
	refreshCopy := *refresh
	s.tokens[access.ID] = &accessCopy
	s.tokens[refresh.ID] = &refreshCopy
	return nil
}

func (s *FakeSessionStore) RevokeToken(_ context.Context, tokenID string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return false, s.FailWith
	}

	rec, ok := s.tokens[tokenID]
	if !ok || rec.Revoked {
		return false, nil
	}
	rec.Revoked = true
	return true, nil
}

func (s *FakeSessionStore) RevokeSession(_ context.Context, sessionID string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.FailWith != nil {
		return 0, s.FailWith
	}

	session, ok := s.sessions[sessionID]
	if !ok {
		return 0, internalerrors.ErrNotFound
	}
	session.Revoked = true

	revoked := 0
	for _, rec := range s.tokens {
		if rec.SessionID == sessionID && !rec.Revoked {
			rec.Revoked = true
			revoked++
		}
	}
	return revoked, nil
}

// TokenRecord returns a copy of a stored token row, for test assertions.
func (s *FakeSessionStore) TokenRecord(tokenID string) (sessions.TokenRecord, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	rec, ok := s.tokens[tokenID]
	if !ok {
		return sessions.TokenRecord{}, false
	}
	return *rec, true
}
