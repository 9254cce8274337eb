package contracts

import (
	"context"
	"database/sql"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConnectionPool hands out the writer and reader database handles.
type ConnectionPool interface {
	// Writer returns the primary handle.
	Writer() *sql.DB
	// Reader returns the next healthy replica, or the writer if there is none.
	Reader() *sql.DB
	// Readers returns every configured replica in reader order.
	Readers() []*sql.DB
	// Ping checks the writer and every reader.
	Ping(ctx context.Context) error
	// WithinTx runs fn in a writer transaction carried by the context passed
	// to fn. The transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Executor returns the transaction in ctx, or the writer.
	Executor(ctx context.Context) SQLExecutor
}
