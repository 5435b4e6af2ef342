package pgasync

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Driver is the subset of *pgx.Conn a Conn drives. It is satisfied by
// *pgx.Conn, by pgxmock's PgxConnIface, and by TestDriver.
//
// A Driver is only ever used from the owning Conn's loop goroutine, so
// implementations need not be safe for concurrent use.
type Driver interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a statement and returns its rows. The caller closes them.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close terminates the connection.
	Close(ctx context.Context) error
}

var _ Driver = (*pgx.Conn)(nil)

// DialFunc opens a Driver from a fully prepared pgx configuration.
type DialFunc func(ctx context.Context, cfg *pgx.ConnConfig) (Driver, error)

func dialPgx(ctx context.Context, cfg *pgx.ConnConfig) (Driver, error) {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
