package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinovia/clinic-api/internal/repository"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, repository.ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, repository.ErrDuplicate},
		{"exclusion violation", &pq.Error{Code: "23P01"}, repository.ErrOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.in), tt.want)
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, err, translateError(err))
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := base.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSerializableTxRetriesSerializationFailure(t *testing.T) {
	db, mock := newMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := base.WithSerializableTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSerializableTxGivesUpEventually(t *testing.T) {
	db, mock := newMockDB(t)
	base := NewBaseRepository(db)

	for i := 0; i < serializableAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	err := base.WithSerializableTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return &pq.Error{Code: "40001"}
	})

	require.Error(t, err)
	require.ErrorIs(t, err, repository.ErrSerialization)
	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, serializableAttempts, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSerializableTxDoesNotRetryOtherErrors(t *testing.T) {
	db, mock := newMockDB(t)
	base := NewBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := base.WithSerializableTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
