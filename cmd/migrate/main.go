package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/IDEA-on-Action/mcp-auth/internal/config"
	"github.com/IDEA-on-Action/mcp-auth/sessions/postgres"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	c := config.New()
	if err := postgres.Migrate(c.GetDatabaseURL(), *direction); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Str("direction", *direction).Msg("migrations applied")
}
