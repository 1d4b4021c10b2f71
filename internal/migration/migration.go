package migration

import (
	"context"
	"fmt"

	"studyfeedback/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in order. The DDL is chosen from the
// driver the connection was opened with.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return err
	}

	if err := r.createFeedbackTemplatesTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create feedback_templates table")
	}

	if err := r.createEnrichedResultsTable(ctx, db, d); err != nil {
		return errors.Wrap(err, "failed to create enriched_results table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

type dialect struct {
	timestamp string
	json      string
	now       string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "postgres":
		return dialect{timestamp: "TIMESTAMP WITH TIME ZONE", json: "JSONB", now: "NOW()"}, nil
	case "sqlite":
		return dialect{timestamp: "TIMESTAMP", json: "TEXT", now: "CURRENT_TIMESTAMP"}, nil
	default:
		return dialect{}, errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}
}

func (r *MigrationRunner) createFeedbackTemplatesTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS feedback_templates (
			id TEXT PRIMARY KEY,
			study_id TEXT NOT NULL UNIQUE,
			body TEXT NOT NULL,
			updated_at %s NOT NULL DEFAULT %s
		)
	`, d.timestamp, d.now))
	return err
}

func (r *MigrationRunner) createEnrichedResultsTable(ctx context.Context, db *sqlx.DB, d dialect) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS enriched_results (
			id TEXT PRIMARY KEY,
			study_id TEXT NOT NULL,
			participant_id TEXT NOT NULL DEFAULT '',
			payload %s NOT NULL,
			created_at %s NOT NULL DEFAULT %s
		)
	`, d.json, d.timestamp, d.now))
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_enriched_results_study
		ON enriched_results (study_id, created_at)
	`)
	return err
}
