package config

import "time"

type WebhookConfig interface {
	GetWebhookSecret() string
	GetWebhookTolerance() time.Duration
}

type Webhook struct{}

var _ WebhookConfig = Webhook{}

func (Webhook) GetWebhookSecret() string {
	return GetEnv(webhookSecret, "")
}

// GetWebhookTolerance bounds the replay window for signed inbound requests.
func (Webhook) GetWebhookTolerance() time.Duration {
	return 5 * time.Minute
}
