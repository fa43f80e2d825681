package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IDEA-on-Action/mcp-auth/clients"
	fakeclientrepo "github.com/IDEA-on-Action/mcp-auth/clients/fakerepo"
	"github.com/IDEA-on-Action/mcp-auth/identity"
	"github.com/IDEA-on-Action/mcp-auth/internal/config"
	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/permissions"
	"github.com/IDEA-on-Action/mcp-auth/server"
	"github.com/IDEA-on-Action/mcp-auth/sessions/repofakes"
	"github.com/IDEA-on-Action/mcp-auth/signature"
	"github.com/IDEA-on-Action/mcp-auth/token"
)

const (
	testClientID     = "svc-gateway"
	testClientSecret = "gateway-secret"
	testAudience     = "mcp-api"
	webhookProvider  = "billing"
	webhookSecret    = "hook-secret"
)

type fakeAssertionVerifier struct {
	assertion *identity.Assertion
	err       error
}

func (f *fakeAssertionVerifier) VerifyAssertion(_ context.Context, _ string) (*identity.Assertion, error) {
	return f.assertion, f.err
}

// serverFixture wires a full Server over in-memory fakes.
type serverFixture struct {
	server   *server.Server
	store    *repofakes.FakeSessionStore
	manager  *token.Manager
	provider *fakeAssertionVerifier
	now      time.Time
	lock     sync.Mutex
}

func setupServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		store: repofakes.NewFakeSessionStore(),
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		provider: &fakeAssertionVerifier{
			assertion: &identity.Assertion{Provider: "clerk", Subject: "u1", Email: "u1@test.dev"},
		},
	}

	f.manager = token.New(f.store, token.NewHMACSigner("server-test-secret"),
		token.WithIssuer("https://auth.test"),
		token.WithNowFunc(f.nowFunc),
	)

	hash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)
	clientRepo := fakeclientrepo.NewFakeClientRepo()
	require.NoError(t, clientRepo.Upsert(&clients.Client{
		ID:         testClientID,
		Audience:   testAudience,
		SecretHash: hash,
		Scopes:     []string{"profile:read", "tools:invoke"},
	}))

	f.server = server.New(config.New(), f.manager, clientRepo, permissions.NewEvaluator())
	f.server.RegisterIdentityProvider("clerk", f.provider)
	f.server.RegisterWebhookVerifier(webhookProvider,
		signature.NewVerifier(webhookSecret, signature.WithNowFunc(f.nowFunc)))
	return f
}

func (f *serverFixture) nowFunc() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.now
}

func (f *serverFixture) advance(d time.Duration) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.now = f.now.Add(d)
}

func (f *serverFixture) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) issuePair(t *testing.T) *token.TokenPair {
	t.Helper()
	pair, err := f.manager.Issue(context.Background(), "u1", testAudience, []string{"profile:read"})
	require.NoError(t, err)
	return pair
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestTokenHandler_AssertionGrant(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"provider":      {"clerk"},
		"assertion":     {"upstream-id-token"},
		"scope":         {"profile:read tools:invoke"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	pair := decodeJSON[token.TokenPair](t, rec)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)

	// The minted token is bound to the client's registered audience.
	verification, err := f.manager.Verify(context.Background(), pair.AccessToken, testAudience)
	require.NoError(t, err)
	require.Equal(t, token.StatusValid, verification.Status)
	require.Equal(t, "u1", verification.Subject)
	require.ElementsMatch(t, []string{"profile:read", "tools:invoke"}, verification.Scopes)
}

// Unknown client id and wrong secret produce byte-identical responses.
func TestTokenHandler_ClientAuthUniformRejection(t *testing.T) {
	f := setupServerFixture(t)

	recUnknown := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"provider":      {"clerk"},
		"assertion":     {"upstream-id-token"},
		"client_id":     {"no-such-client"},
		"client_secret": {testClientSecret},
	})
	recBadSecret := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"provider":      {"clerk"},
		"assertion":     {"upstream-id-token"},
		"client_id":     {testClientID},
		"client_secret": {"wrong"},
	})

	require.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	require.Equal(t, http.StatusUnauthorized, recBadSecret.Code)
	require.Equal(t, recUnknown.Body.String(), recBadSecret.Body.String())
}

func TestTokenHandler_DisallowedScope(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"provider":      {"clerk"},
		"assertion":     {"upstream-id-token"},
		"scope":         {"admin:write"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "invalid_scope", body["error"])
}

func TestTokenHandler_UnknownProvider(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"provider":      {"nope"},
		"assertion":     {"upstream-id-token"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_InvalidAssertion(t *testing.T) {
	f := setupServerFixture(t)
	f.provider.assertion = nil
	f.provider.err = internalerrors.ErrInvalidAssertion

	rec := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"assertion"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
		"provider":      {"clerk"},
		"assertion":     {"garbage"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "invalid_grant", body["error"])
}

func TestTokenHandler_RefreshGrant(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	rec := f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {pair.RefreshToken},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	newPair := decodeJSON[token.TokenPair](t, rec)
	require.NotEqual(t, pair.AccessToken, newPair.AccessToken)

	// Replaying the spent refresh token fails generically.
	rec = f.postForm(t, "/v1/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {pair.RefreshToken},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "invalid_grant", body["error"])
	require.Equal(t, "invalid token", body["error_description"])
}

func TestTokenHandler_RefreshGrantMissingToken(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/token", url.Values{"grant_type": {"refresh_token"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_UnsupportedGrantType(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/token", url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "unsupported_grant_type", body["error"])
}

func TestIntrospectHandler(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	rec := f.postForm(t, "/v1/introspect", url.Values{
		"token":    {pair.AccessToken},
		"audience": {testAudience},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, true, body["active"])
	require.Equal(t, "valid", body["status"])
	require.Equal(t, "u1", body["sub"])
	require.Equal(t, testAudience, body["aud"])
	require.Equal(t, "profile:read", body["scope"])
}

func TestIntrospectHandler_InactiveStatuses(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	tests := []struct {
		name       string
		token      string
		audience   string
		wantStatus string
	}{
		{"garbage token", "not-a-token", testAudience, "invalid"},
		{"wrong audience", pair.AccessToken, "other-svc", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.postForm(t, "/v1/introspect", url.Values{
				"token":    {tt.token},
				"audience": {tt.audience},
			})
			require.Equal(t, http.StatusOK, rec.Code)

			body := decodeJSON[map[string]any](t, rec)
			require.Equal(t, false, body["active"])
			require.Equal(t, tt.wantStatus, body["status"])
			// Inactive responses carry no claims.
			require.NotContains(t, body, "sub")
		})
	}
}

func TestIntrospectHandler_Expired(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)
	f.advance(2 * time.Hour)

	rec := f.postForm(t, "/v1/introspect", url.Values{
		"token":    {pair.AccessToken},
		"audience": {testAudience},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, false, body["active"])
	require.Equal(t, "expired", body["status"])
}

func TestIntrospectHandler_MissingToken(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/introspect", url.Values{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeHandler_Token(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	verification, err := f.manager.Verify(context.Background(), pair.AccessToken, testAudience)
	require.NoError(t, err)

	rec := f.postForm(t, "/v1/revoke", url.Values{"token_id": {verification.TokenID}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, true, body["revoked"])

	// Idempotent second call.
	rec = f.postForm(t, "/v1/revoke", url.Values{"token_id": {verification.TokenID}})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeJSON[map[string]any](t, rec)
	require.Equal(t, false, body["revoked"])
}

func TestRevokeHandler_Session(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	verification, err := f.manager.Verify(context.Background(), pair.AccessToken, testAudience)
	require.NoError(t, err)

	rec := f.postForm(t, "/v1/revoke", url.Values{"session_id": {verification.SessionID}})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, true, body["revoked"])
	require.Equal(t, float64(2), body["revoked_count"])
}

func TestRevokeHandler_MissingParams(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postForm(t, "/v1/revoke", url.Values{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func (f *serverFixture) postPermissionCheck(t *testing.T, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/permissions/check", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestPermissionsCheckHandler_RequiresBearer(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postPermissionCheck(t, "", map[string]string{"check": "role", "role": "admin", "verb": "invite"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPermissionsCheckHandler_ExpiredBearer(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)
	f.advance(2 * time.Hour)

	rec := f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "role", "role": "admin", "verb": "invite"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "expired", body["error"])
}

func TestPermissionsCheckHandler_Role(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	rec := f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "role", "role": "member", "verb": "invite"})
	require.Equal(t, http.StatusOK, rec.Code)

	decision := decodeJSON[permissions.Decision](t, rec)
	require.False(t, decision.Allowed)
	require.NotEmpty(t, decision.Reason)

	rec = f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "role", "role": "admin", "verb": "invite"})
	decision = decodeJSON[permissions.Decision](t, rec)
	require.True(t, decision.Allowed)
}

func TestPermissionsCheckHandler_Feature(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	rec := f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "feature", "plan": "basic", "feature": "mcp.custom-agents"})
	require.Equal(t, http.StatusOK, rec.Code)

	decision := decodeJSON[permissions.Decision](t, rec)
	require.False(t, decision.Allowed)
	require.Equal(t, permissions.TierPro, decision.RequiredPlan)
}

func TestPermissionsCheckHandler_ScopeUsesBearerToken(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t) // granted profile:read only

	rec := f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "scope", "scope": "profile:read"})
	decision := decodeJSON[permissions.Decision](t, rec)
	require.True(t, decision.Allowed)

	rec = f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "scope", "scope": "tools:invoke"})
	decision = decodeJSON[permissions.Decision](t, rec)
	require.False(t, decision.Allowed)
}

func TestPermissionsCheckHandler_UnknownCheck(t *testing.T) {
	f := setupServerFixture(t)
	pair := f.issuePair(t)

	rec := f.postPermissionCheck(t, pair.AccessToken, map[string]string{"check": "vibes"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func (f *serverFixture) postWebhook(t *testing.T, provider string, payload []byte, sig, ts string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/"+provider, bytes.NewReader(payload))
	req.Header.Set(server.HeaderWebhookSignature, sig)
	req.Header.Set(server.HeaderWebhookTimestamp, ts)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler(t *testing.T) {
	f := setupServerFixture(t)
	payload := []byte(`{"event":"invoice.paid"}`)
	signer := signature.NewVerifier(webhookSecret)
	ts := f.nowFunc()

	rec := f.postWebhook(t, webhookProvider, payload, signer.Sign(payload, ts), strconv.FormatInt(ts.Unix(), 10))
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhookHandler_TamperedPayload(t *testing.T) {
	f := setupServerFixture(t)
	signer := signature.NewVerifier(webhookSecret)
	ts := f.nowFunc()
	sig := signer.Sign([]byte(`{"event":"invoice.paid"}`), ts)

	rec := f.postWebhook(t, webhookProvider, []byte(`{"event":"invoice.void"}`), sig, strconv.FormatInt(ts.Unix(), 10))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "invalid_signature", body["error"])
}

func TestWebhookHandler_StaleTimestamp(t *testing.T) {
	f := setupServerFixture(t)
	payload := []byte(`{"event":"invoice.paid"}`)
	signer := signature.NewVerifier(webhookSecret)
	stale := f.nowFunc().Add(-10 * time.Minute)

	rec := f.postWebhook(t, webhookProvider, payload, signer.Sign(payload, stale), strconv.FormatInt(stale.Unix(), 10))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeJSON[map[string]string](t, rec)
	require.Equal(t, "replay_rejected", body["error"])
}

func TestWebhookHandler_UnknownProvider(t *testing.T) {
	f := setupServerFixture(t)

	rec := f.postWebhook(t, "no-such-provider", []byte("{}"), "sha256=00", "0")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
