package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/sessions"
)

// Status is the outcome of a token verification.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// RevocationPolicy decides what Verify does when the session store cannot
// be reached for the revocation check.
type RevocationPolicy int

const (
	// DegradeOpen accepts tokens on signature+expiry alone when the store
	// is unreachable. This trades revocation latency for availability; the
	// resulting Verification carries Degraded=true so callers can audit
	// how often the trade is exercised.
	DegradeOpen RevocationPolicy = iota

	// FailClosed surfaces store failures as ErrStoreUnavailable instead of
	// accepting the token.
	FailClosed
)

// Verification is the result of verifying a presented access token.
type Verification struct {
	Status    Status
	Subject   string
	Audience  string
	Scopes    []string
	SessionID string
	TokenID   string
	Degraded  bool // revocation check skipped under DegradeOpen
}

// TokenPair is what issue and refresh hand back to callers. Raw store rows
// never leave the manager.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// DefaultScope is granted when issue is called with no explicit scopes.
// Callers never receive broader access than they asked for.
const DefaultScope = "profile:read"

// Manager issues, verifies, refreshes and revokes session-bound token
// pairs. It holds no mutable state of its own: the session store is the
// single source of truth for revocation and rotation, so the manager is
// safe for concurrent use without locks.
type Manager struct {
	store              sessions.Store
	defaultCodec       *Codec
	audienceCodecs     map[string]*Codec // audience-specific signing contexts
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	revocationPolicy   RevocationPolicy
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevocationPolicy(policy RevocationPolicy) ManagerOption {
	return func(m *Manager) {
		m.revocationPolicy = policy
	}
}

func New(store sessions.Store, defaultSigner Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		store:          store,
		defaultCodec:   NewCodec(defaultSigner),
		audienceCodecs: make(map[string]*Codec),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 30 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// RegisterAudienceSigner installs a dedicated signing context for one
// audience. Tokens minted for that audience are signed with its secret and
// will not validate against any other audience's.
func (m *Manager) RegisterAudienceSigner(audience string, signer Signer) {
	m.audienceCodecs[audience] = NewCodec(signer)
}

// Issue allocates a new session for (subject, audience, scopes) and mints
// its first access/refresh pair. Session and token rows are created in one
// atomic store operation: a store rejection leaves nothing behind.
func (m *Manager) Issue(ctx context.Context, subject, audience string, scopes []string) (*TokenPair, error) {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	now := m.nowFunc()
	session := &sessions.Session{
		ID:        uuid.New().String(),
		SubjectID: subject,
		Audience:  audience,
		Scopes:    scopes,
		CreatedAt: now,
	}

	pair, access, refresh, err := m.mintPair(session, now)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.Issue mintPair")
	}

	if err := m.store.CreateSessionWithTokens(ctx, session, access, refresh); err != nil {
		return nil, errors.Wrap(err, "Manager.Issue CreateSessionWithTokens")
	}
	return pair, nil
}

// Verify validates a presented token: signature first, then local expiry,
// then audience, then the store's revocation flag. Signature failure never
// triggers a store lookup. Pass an empty expectedAudience to skip the
// audience check.
func (m *Manager) Verify(ctx context.Context, rawToken, expectedAudience string) (*Verification, error) {
	claims, err := m.codecFor(PeekAudience(rawToken)).Decode(rawToken)
	if err != nil {
		return &Verification{Status: StatusInvalid}, nil
	}

	if claims.ExpiresAt.Before(m.nowFunc()) {
		return &Verification{Status: StatusExpired}, nil
	}

	if expectedAudience != "" && claims.Audience != expectedAudience {
		return &Verification{Status: StatusInvalid}, nil
	}

	if claims.TokenID == "" {
		return &Verification{Status: StatusInvalid}, nil
	}

	verification := &Verification{
		Status:    StatusValid,
		Subject:   claims.Subject,
		Audience:  claims.Audience,
		Scopes:    claims.Scopes,
		SessionID: claims.SessionID,
		TokenID:   claims.TokenID,
	}

	status, err := m.store.GetTokenStatus(ctx, claims.TokenID)
	switch {
	case internalerrors.Is(err, internalerrors.ErrNotFound):
		// A well-signed token the store has never seen. Collapsed to
		// invalid so callers cannot enumerate which ids ever existed.
		return &Verification{Status: StatusInvalid}, nil
	case err != nil:
		if m.revocationPolicy == FailClosed {
			return nil, internalerrors.Wrapf(internalerrors.ErrStoreUnavailable, "Manager.Verify revocation check: %v", err)
		}
		verification.Degraded = true
		return verification, nil
	}

	if status.Revoked {
		return &Verification{Status: StatusRevoked}, nil
	}
	return verification, nil
}

// Refresh exchanges a valid refresh token for a new pair under the same
// session. Rotation is a single conditional store operation, so a refresh
// token presented twice fails the second time. Losing that race is a
// normal outcome, reported as ErrAlreadyRevoked.
func (m *Manager) Refresh(ctx context.Context, rawRefreshToken string) (*TokenPair, error) {
	claims, err := m.codecFor(PeekAudience(rawRefreshToken)).Decode(rawRefreshToken)
	if err != nil {
		return nil, internalerrors.ErrSignatureInvalid
	}

	if claims.Kind != sessions.KindRefresh {
		return nil, internalerrors.ErrWrongTokenKind
	}
	if claims.TokenID == "" {
		return nil, internalerrors.ErrMissingTokenID
	}
	if claims.ExpiresAt.Before(m.nowFunc()) {
		return nil, internalerrors.ErrTokenExpired
	}

	now := m.nowFunc()
	session := &sessions.Session{
		ID:        claims.SessionID,
		SubjectID: claims.Subject,
		Audience:  claims.Audience,
		Scopes:    claims.Scopes,
	}

	pair, access, refresh, err := m.mintPair(session, now)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.Refresh mintPair")
	}

	err = m.store.RotateRefreshToken(ctx, claims.TokenID, access, refresh)
	switch {
	case internalerrors.Is(err, internalerrors.ErrAlreadyRevoked),
		internalerrors.Is(err, internalerrors.ErrNotFound):
		// Spent and unknown collapse to one outcome; distinguishing them
		// would leak which token ids exist.
		return nil, internalerrors.ErrAlreadyRevoked
	case err != nil:
		return nil, errors.Wrap(err, "Manager.Refresh RotateRefreshToken")
	}
	return pair, nil
}

// Revoke marks a single token permanently unusable. Idempotent: revoking
// an already-revoked or unknown token returns false, not an error. The
// sibling token of a pair is untouched; use RevokeSession to invalidate a
// whole grant.
func (m *Manager) Revoke(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := m.store.RevokeToken(ctx, tokenID)
	if err != nil {
		return false, errors.Wrap(err, "Manager.Revoke")
	}
	return revoked, nil
}

// RevokeSession invalidates a session and every token minted under it
// (logout-everywhere). Returns the number of tokens revoked.
func (m *Manager) RevokeSession(ctx context.Context, sessionID string) (int, error) {
	revoked, err := m.store.RevokeSession(ctx, sessionID)
	if err != nil {
		return 0, errors.Wrap(err, "Manager.RevokeSession")
	}
	return revoked, nil
}

// AccessTokenExpiry exposes the configured access lifetime (for expires_in
// hints at the transport layer).
func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

func (m *Manager) codecFor(audience string) *Codec {
	if audience == "" {
		return m.defaultCodec
	}
	if codec, exists := m.audienceCodecs[audience]; exists {
		return codec
	}
	return m.defaultCodec
}

// mintPair builds the access/refresh records and their signed strings for
// a session. Rows and strings share ids so the store rows are addressable
// from the jti claims.
func (m *Manager) mintPair(session *sessions.Session, now time.Time) (*TokenPair, *sessions.TokenRecord, *sessions.TokenRecord, error) {
	codec := m.codecFor(session.Audience)

	access := &sessions.TokenRecord{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Kind:      sessions.KindAccess,
		ExpiresAt: now.Add(m.accessTokenExpiry),
		CreatedAt: now,
	}
	refresh := &sessions.TokenRecord{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Kind:      sessions.KindRefresh,
		ExpiresAt: now.Add(m.refreshTokenExpiry),
		CreatedAt: now,
	}

	accessToken, err := codec.Encode(m.claimsFor(session, access, now))
	if err != nil {
		return nil, nil, nil, err
	}
	refreshToken, err := codec.Encode(m.claimsFor(session, refresh, now))
	if err != nil {
		return nil, nil, nil, err
	}

	pair := &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		Scope:        (Claims{Scopes: session.Scopes}).ScopeString(),
	}
	return pair, access, refresh, nil
}

func (m *Manager) claimsFor(session *sessions.Session, rec *sessions.TokenRecord, now time.Time) Claims {
	return Claims{
		Issuer:    m.issuer,
		Subject:   session.SubjectID,
		Audience:  session.Audience,
		Scopes:    session.Scopes,
		SessionID: session.ID,
		TokenID:   rec.ID,
		Kind:      rec.Kind,
		IssuedAt:  now,
		ExpiresAt: rec.ExpiresAt,
	}
}
