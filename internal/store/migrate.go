package store

import (
	"embed"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending goose migration embedded in this
// binary, in numeric filename order.
func Migrate(db *sqlx.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "set migration dialect")
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "apply migrations")
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Used
// by the cmd/migrate CLI's down subcommand.
func MigrateDown(db *sqlx.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "set migration dialect")
	}
	if err := goose.Down(db.DB, "migrations"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "rollback migration")
	}
	return nil
}
