package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/clinovia/clinic-api/internal/repository"
)

// serializableAttempts bounds retries after serialization failures.
const serializableAttempts = 3

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return r.withTx(ctx, nil, fn)
}

// WithSerializableTx executes a function within a SERIALIZABLE transaction.
// Serialization and deadlock aborts are retried with a fresh transaction, so
// fn must be safe to re-run. Exhausting the retries returns an error wrapping
// repository.ErrSerialization.
func (r *BaseRepository) WithSerializableTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = r.withTx(ctx, opts, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", repository.ErrSerialization, err)
}

func (r *BaseRepository) withTx(ctx context.Context, opts *sql.TxOptions, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// translateError maps driver errors onto the repository sentinels so callers
// can branch with errors.Is.
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return repository.ErrDuplicate
		case "23P01": // exclusion_violation
			return repository.ErrOverlap
		}
	}
	return err
}
