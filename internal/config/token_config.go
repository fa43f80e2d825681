package config

import "time"

type TokenConfig interface {
	GetTokenIssuer() string
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetTokenIssuer() string {
	return GetEnv(issuerEnvVar, "https://auth.ideaonaction.ai")
}

func (Token) GetSigningSecret() string {
	return GetEnv(secretEnvVar, "")
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return 30 * 24 * time.Hour // 30 days
}
