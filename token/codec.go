package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
	"github.com/IDEA-on-Action/mcp-auth/sessions"
)

// Codec is the pure transformation between a claim set and a signed token
// string. It performs no I/O and knows nothing about revocation. Decode
// verifies the signature before any claim is trusted; every decode failure
// (bad signature, wrong segment count, bad encoding) comes back as the
// same ErrSignatureInvalid so the error cannot be used as a format oracle.
type Codec struct {
	signer Signer
}

func NewCodec(signer Signer) *Codec {
	return &Codec{signer: signer}
}

// Encode serializes and signs a claim set. Identical input yields an
// identical string (claim keys serialize in sorted order); any byte-level
// change to the payload changes the signature.
func (c *Codec) Encode(claims Claims) (string, error) {
	mapClaims := jwt.MapClaims{
		"iss":   claims.Issuer,
		"sub":   claims.Subject,
		"aud":   claims.Audience,
		"scope": claims.ScopeString(),
		"sid":   claims.SessionID,
		"jti":   claims.TokenID,
		"kind":  string(claims.Kind),
		"iat":   claims.IssuedAt.Unix(),
		"exp":   claims.ExpiresAt.Unix(),
	}
	signed, err := c.signer.Sign(mapClaims)
	if err != nil {
		return "", errors.Wrap(err, "Codec.Encode")
	}
	return signed, nil
}

// Decode verifies the signature over the received payload (the underlying
// comparison is constant-time HMAC equality) and only then deserializes
// the claims. Expiry is deliberately not checked here: the codec has no
// clock, the verifier does.
func (c *Codec) Decode(rawToken string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.Parse(rawToken, c.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return nil, internalerrors.ErrSignatureInvalid
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, internalerrors.ErrSignatureInvalid
	}
	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(mapClaims jwt.MapClaims) *Claims {
	claims := &Claims{}
	claims.Issuer, _ = mapClaims["iss"].(string)
	claims.Subject, _ = mapClaims["sub"].(string)
	claims.Audience, _ = mapClaims["aud"].(string)
	claims.SessionID, _ = mapClaims["sid"].(string)
	claims.TokenID, _ = mapClaims["jti"].(string)

	if kind, ok := mapClaims["kind"].(string); ok {
		claims.Kind = sessions.TokenKind(kind)
	}
	if scope, ok := mapClaims["scope"].(string); ok && scope != "" {
		claims.Scopes = strings.Fields(scope)
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims
}

// PeekAudience extracts the audience claim without verifying the
// signature. Used only to select the signing context for a full verify;
// the value must never be trusted for anything else.
func PeekAudience(rawToken string) string {
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	mapClaims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	audience, _ := mapClaims["aud"].(string)
	return audience
}
