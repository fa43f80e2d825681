package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	fakeclientrepo "github.com/IDEA-on-Action/mcp-auth/clients/fakerepo"
	"github.com/IDEA-on-Action/mcp-auth/internal/config"
	"github.com/IDEA-on-Action/mcp-auth/permissions"
	"github.com/IDEA-on-Action/mcp-auth/server"
	"github.com/IDEA-on-Action/mcp-auth/sessions"
	"github.com/IDEA-on-Action/mcp-auth/sessions/postgres"
	"github.com/IDEA-on-Action/mcp-auth/sessions/repofakes"
	"github.com/IDEA-on-Action/mcp-auth/signature"
	"github.com/IDEA-on-Action/mcp-auth/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	store, err := sessionStore(c)
	if err != nil {
		return err
	}

	secret := c.GetSigningSecret()
	if secret == "" {
		return errors.New("TOKEN_SIGNING_SECRET is not set")
	}

	tokens := token.New(store, token.NewHMACSigner(secret),
		token.WithIssuer(c.GetTokenIssuer()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)

	srv := server.New(c, tokens, fakeclientrepo.NewFakeClientRepo(), permissions.NewEvaluator())
	if webhookSecret := c.GetWebhookSecret(); webhookSecret != "" {
		srv.RegisterWebhookVerifier("billing",
			signature.NewVerifier(webhookSecret, signature.WithTolerance(c.GetWebhookTolerance())))
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func sessionStore(c config.Config) (sessions.Store, error) {
	if c.GetDatabaseURL() == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory session store")
		return repofakes.NewFakeSessionStore(), nil
	}
	db, err := postgres.Connect(context.Background(), c)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connect: %w", err)
	}
	return postgres.NewStore(db), nil
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
