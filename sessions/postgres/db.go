package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/IDEA-on-Action/mcp-auth/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens a PostgreSQL pool using the pgx stdlib driver.
func Connect(ctx context.Context, cfg config.StoreConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.GetMaxOpenConns())
	db.SetMaxIdleConns(cfg.GetMaxIdleConns())

	pingCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
