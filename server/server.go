package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/IDEA-on-Action/mcp-auth/clients"
	"github.com/IDEA-on-Action/mcp-auth/identity"
	"github.com/IDEA-on-Action/mcp-auth/internal/config"
	"github.com/IDEA-on-Action/mcp-auth/permissions"
	"github.com/IDEA-on-Action/mcp-auth/signature"
	"github.com/IDEA-on-Action/mcp-auth/token"
)

// AssertionVerifier validates upstream identity assertions. Satisfied by
// identity.Verifier; faked in tests.
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, rawIDToken string) (*identity.Assertion, error)
}

// Server exposes the token core over HTTP: the token-exchange surface for
// internal MCP services, webhook ingestion, and the permission gate the
// platform's feature gates consult.
type Server struct {
	env       string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	tokens    *token.Manager
	clients   clients.Repo
	evaluator *permissions.Evaluator
	webhooks  map[string]*signature.Verifier
	providers map[string]AssertionVerifier
}

func New(cfg config.Config, tokens *token.Manager, clientRepo clients.Repo, evaluator *permissions.Evaluator) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		tokens:    tokens,
		clients:   clientRepo,
		evaluator: evaluator,
		webhooks:  make(map[string]*signature.Verifier),
		providers: make(map[string]AssertionVerifier),
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()
	return s
}

// RegisterWebhookVerifier installs the signature verifier for one inbound
// webhook provider (billing, upstream IdP events, ...).
func (s *Server) RegisterWebhookVerifier(provider string, verifier *signature.Verifier) {
	s.webhooks[provider] = verifier
}

// RegisterIdentityProvider installs an upstream assertion verifier.
func (s *Server) RegisterIdentityProvider(name string, verifier AssertionVerifier) {
	s.providers[name] = verifier
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}
