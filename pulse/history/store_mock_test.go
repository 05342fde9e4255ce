package history

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/nanoprobe/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewStore(mockDB), mock
}

func TestStore_DatabaseErrors(t *testing.T) {
	boom := errors.New("disk I/O error")

	t.Run("create", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO resource_executions").WillReturnError(boom)

		err := store.CreateExecution(runningExecution("x", "nic0", time.Now()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create execution x")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("complete rows affected", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("UPDATE resource_executions").
			WillReturnResult(sqlmock.NewErrorResult(boom))

		err := store.CompleteExecution(runningExecution("x", "nic0", time.Now()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rows affected")
	})

	t.Run("get", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, resource").WithArgs("x").WillReturnError(boom)

		_, err := store.GetExecution("x")
		require.Error(t, err)
		assert.False(t, errors.IsNotFoundError(err))
	})

	t.Run("list count", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT COUNT").WillReturnError(boom)

		_, _, err := store.ListExecutions("nic0", 10, 0, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to count executions")
	})

	t.Run("list scan", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT id, resource").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x"))

		_, _, err := store.ListExecutions("nic0", 10, 0, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan execution")
	})

	t.Run("cleanup", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM resource_executions").WillReturnError(sql.ErrConnDone)

		_, err := store.CleanupOldExecutions(30)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrConnDone))
	})
}
