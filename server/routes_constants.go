package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Token exchange routes
	RouteToken      = "/v1/token"
	RouteIntrospect = "/v1/introspect"
	RouteRevoke     = "/v1/revoke"

	// Permission gate route
	RoutePermissionsCheck = "/v1/permissions/check"

	// Webhook ingestion (pattern)
	RouteWebhook = "/v1/webhooks/{provider}"
)

// Signature headers accompanying signed webhook requests
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)
