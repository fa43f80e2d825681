package config

type Config interface {
	EnvConfig
	TokenConfig
	WebhookConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Token
	Webhook
	Store
}

func New() Config {
	return mainConfig{}
}
