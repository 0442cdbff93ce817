package container

import (
	"context"
	"log"

	"gobiodiv/internal/config"
	"gobiodiv/internal/errors"
	"gobiodiv/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Bootstrap builds a ready container. With DATABASE_URL set it connects,
// migrates and stores results in Postgres; otherwise results live in memory.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Container, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if !cfg.Database.Enabled() {
		log.Println("DATABASE_URL not set, results are kept in memory")
		return c, c.InitInMemory()
	}

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.InitWithDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// initDatabase connects to PostgreSQL and applies migrations
func initDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}
