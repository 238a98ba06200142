// Package dialect defines the database abstraction consumed by the
// persistence engine: the Driver and Tx interfaces, and the dialect
// constants used to select statement syntax.
package dialect

import "context"

// Dialect names supported by the engine.
const (
	// MySQL is the MySQL/MariaDB dialect.
	MySQL = "mysql"
	// SQLite is the SQLite dialect.
	SQLite = "sqlite"
	// Postgres is the PostgreSQL dialect.
	Postgres = "postgres"
)

// ExecQuerier wraps the two basic statement operations: parameterized
// execution and parameterized querying. It is implemented by both
// Driver and Tx, so statement code runs unchanged inside and outside
// of a transaction.
type ExecQuerier interface {
	// Exec executes a statement. args must be a []any holding the
	// positional parameters. v may be nil, or a *sql.Result to receive
	// the execution result (affected rows, generated key).
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query. args must be a []any holding the
	// positional parameters, and v a *sql.Rows to receive the result.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface for database drivers used by the engine.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection pool.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is the transaction interface returned by Driver.Tx.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
