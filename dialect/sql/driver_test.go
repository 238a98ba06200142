package sql

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janiece-23/BetterAdvisor/dialect"
)

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.SQLite, db)
	defer drv.Close()

	t.Run("discard_result", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM users").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		err := drv.Exec(context.Background(), "DELETE FROM users WHERE id = ?", []any{int64(1)}, nil)
		assert.NoError(t, err)
	})

	t.Run("scan_result", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(10, 1))
		var res sql.Result
		err := drv.Exec(context.Background(), "INSERT INTO users (username) VALUES (?)", []any{"boring"}, &res)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		assert.Equal(t, int64(10), id)
	})

	t.Run("invalid_dest_type", func(t *testing.T) {
		var n int
		err := drv.Exec(context.Background(), "DELETE FROM users", []any{}, &n)
		assert.Error(t, err)
	})

	t.Run("invalid_args_type", func(t *testing.T) {
		err := drv.Exec(context.Background(), "DELETE FROM users", "not a slice", nil)
		assert.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.SQLite, db)
	defer drv.Close()

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	var rows Rows
	require.NoError(t, drv.Query(context.Background(), "SELECT id FROM users", []any{}, &rows))
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)

	var n int
	assert.Error(t, drv.Query(context.Background(), "SELECT id FROM users", []any{}, &n))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.SQLite, db)
	defer drv.Close()

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO users (username) VALUES (?)", []any{"a8m"}, nil))
		require.NoError(t, tx.Commit())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()
		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for driverName, want := range map[string]string{
		"sqlite":       dialect.SQLite,
		"sqlite3":      dialect.SQLite,
		"mysql":        dialect.MySQL,
		"postgres":     dialect.Postgres,
		"postgres-otl": dialect.Postgres,
		"oracle":       "oracle",
	} {
		assert.Equal(t, want, OpenDB(driverName, db).Dialect())
	}
}

func TestIsValidIdentifier(t *testing.T) {
	assert.True(t, isValidIdentifier("users"))
	assert.True(t, isValidIdentifier("_private"))
	assert.True(t, isValidIdentifier("app.users"))
	assert.False(t, isValidIdentifier(""))
	assert.False(t, isValidIdentifier("user name"))
	assert.False(t, isValidIdentifier("users--"))
}
