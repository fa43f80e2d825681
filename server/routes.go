package server

func (s *Server) initRoutes() {
	// Token exchange surface, maps 1:1 onto issue/verify/refresh/revoke
	s.RegisterRouteFunc("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteIntrospect, ChainMiddleware(s.IntrospectHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRevoke, ChainMiddleware(s.RevokeHandler(), s.APIMiddleware()...))

	// Permission gate consulted by UI/API feature gates
	s.RegisterRouteFunc("POST "+RoutePermissionsCheck,
		ChainMiddleware(s.PermissionsCheckHandler(), s.APIMiddleware(s.RequireBearerToken(""))...))

	// Inbound webhooks, authenticated by request signature rather than tokens
	s.RegisterRouteFunc("POST "+RouteWebhook, ChainMiddleware(s.WebhookHandler(), s.APIMiddleware()...))
}
