package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return New(db.New(sqlx.NewDb(mockDB, "postgres"), "")), mock
}

func TestTransactCommits(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM orders").WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Transact(context.Background(), func(tx storage.Store) error {
		return tx.DeleteOrder(context.Background(), 1)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactRollsBack(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM orders").WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := s.Transact(context.Background(), func(tx storage.Store) error {
		if err := tx.DeleteOrder(context.Background(), 1); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNestedTransactJoins(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(1, "hello").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "message", "created_at"}))
	mock.ExpectRollback()

	err := s.Transact(context.Background(), func(outer storage.Store) error {
		return outer.Transact(context.Background(), func(inner storage.Store) error {
			_, err := inner.InsertNotification(context.Background(), notifications.New(1, "hello"))
			return err
		})
	})
	assert.Error(t, err, "no row was returned")
	assert.NoError(t, mock.ExpectationsWereMet(), "only one transaction is opened")
}

func TestLockOrderSelectsForUpdate(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.Transact(context.Background(), func(tx storage.Store) error {
		_, err := tx.LockOrder(context.Background(), 5)
		return err
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
