// Package dbschema contains the database schema, migrations and seeding data.
package dbschema

import (
	"context"
	"database/sql"
	_ "embed" // Used to embed sql files.
	"errors"
	"fmt"

	"github.com/ardanlabs/darwin/v3"
	"github.com/ardanlabs/darwin/v3/dialects/postgres"
	"github.com/ardanlabs/darwin/v3/drivers/generic"
)

var (
	//go:embed sql/migrations.sql
	migrations string

	//go:embed sql/seed.sql
	seed string
)

// Migrate brings the schema up to the latest version.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("status check database: %w", err)
	}

	driver, err := generic.New(db, postgres.Dialect{})
	if err != nil {
		return err
	}

	d := darwin.New(driver, darwin.ParseMigrations(migrations))
	if err := d.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	return nil
}

// Seed provisions the fixed set of clients. Clients that already exist are
// left untouched, so it is safe to run on every startup.
func Seed(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if errTx := tx.Rollback(); errTx != nil && !errors.Is(errTx, sql.ErrTxDone) {
			err = fmt.Errorf("rollback: %w", errTx)
		}
	}()

	if _, err := tx.ExecContext(ctx, seed); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	return tx.Commit()
}
