// Package postgres holds the sqlx repositories. PostgreSQL is the production
// target; the embedded SQLite driver serves local runs and tests.
package postgres

import (
	"context"
	"strings"

	"studyfeedback/internal/errors"
	"studyfeedback/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open connects with the named driver, pings, and applies migrations
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError("connect "+driver, err)
	}
	if driver == "sqlite" && strings.Contains(url, ":memory:") {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return db, nil
}
