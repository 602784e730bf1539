package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// Store wraps a *sqlx.DB with the repository methods used by the
// Import Service, the Ingestion Pipeline and the Analytics Engine.
// Every method takes a context.Context and a DBTX so callers can pass
// either the pooled *sqlx.DB or an open *sqlx.Tx for the same method
// (spec §5 "short-lived transactional sessions scoped to each worker
// or request").
type Store struct {
	db *sqlx.DB
}

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, letting every
// repository method run either standalone or inside a unit of work.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// New wraps an already-open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for migrations and health checks.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a new transaction, committing on success and
// rolling back on any error or panic. Each worker in the Ingestion
// Pipeline's module pool owns its own transaction this way, so one
// worker's failure only rolls back its own module (spec §4.5
// "Parallelism").
func (s *Store) WithTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, fmt.Sprintf("rollback after error also failed: %v", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "commit transaction")
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505). No repository method in this package
// calls it; every upsert here uses ON CONFLICT.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if asPGError(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func asPGError(err error, target **pgconn.PgError) bool {
	for err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok {
			*target = pgErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = sql.ErrNoRows
