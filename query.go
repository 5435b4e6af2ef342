package pgasync

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Result is the outcome of Execute.
type Result struct {
	// Values is the first tuple returned by the statement (for example via
	// RETURNING), or nil when it returned none.
	Values []any

	// RowsAffected is taken from the server's command tag.
	RowsAffected int64

	CommandTag pgconn.CommandTag
}

// QueryAsync queues sql and resolves with every returned row. Driver errors
// are delivered unchanged.
//
// Positional parameters use $1, $2, ...; pass a single pgx.NamedArgs to use
// @name placeholders instead.
func (c *Conn) QueryAsync(ctx context.Context, sql string, args ...any) *Future[[]Row] {
	return submit(c, ctx, "query", func(ctx context.Context, drv Driver) ([]Row, error) {
		rows, err := drv.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		return collectRows(rows)
	})
}

// Query runs sql and returns every row.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) ([]Row, error) {
	return c.QueryAsync(ctx, sql, args...).Wait(ctx)
}

// GetAsync is like QueryAsync but resolves with only the first row, or nil
// when the query returns no rows. Further rows are discarded.
func (c *Conn) GetAsync(ctx context.Context, sql string, args ...any) *Future[*Row] {
	return submit(c, ctx, "get", func(ctx context.Context, drv Driver) (*Row, error) {
		rows, err := drv.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		return firstRow(rows, false)
	})
}

// Get runs sql and returns its first row, or nil if there is none.
func (c *Conn) Get(ctx context.Context, sql string, args ...any) (*Row, error) {
	return c.GetAsync(ctx, sql, args...).Wait(ctx)
}

// OneAsync is the strict form of GetAsync: a second row resolves the future
// with ErrMultipleRows.
func (c *Conn) OneAsync(ctx context.Context, sql string, args ...any) *Future[*Row] {
	return submit(c, ctx, "one", func(ctx context.Context, drv Driver) (*Row, error) {
		rows, err := drv.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		return firstRow(rows, true)
	})
}

// One runs sql and returns its only row, nil if there is none, or
// ErrMultipleRows.
func (c *Conn) One(ctx context.Context, sql string, args ...any) (*Row, error) {
	return c.OneAsync(ctx, sql, args...).Wait(ctx)
}

// ExecuteAsync queues a statement and resolves with its first returned tuple
// and affected-row count. Batched (executemany style) execution is not
// supported.
//
// Without arguments the statement is sent over the simple protocol, so sql
// may hold several semicolon-separated statements; Result then describes the
// first one. With arguments it must be a single statement.
func (c *Conn) ExecuteAsync(ctx context.Context, sql string, args ...any) *Future[Result] {
	return submit(c, ctx, "execute", func(ctx context.Context, drv Driver) (Result, error) {
		return execute(ctx, drv, sql, args)
	})
}

// Execute runs a statement. Use RETURNING to get generated identifiers back
// in Result.Values.
func (c *Conn) Execute(ctx context.Context, sql string, args ...any) (Result, error) {
	return c.ExecuteAsync(ctx, sql, args...).Wait(ctx)
}

// ExecuteRowCountAsync resolves with the number of rows the statement
// affected.
func (c *Conn) ExecuteRowCountAsync(ctx context.Context, sql string, args ...any) *Future[int64] {
	return submit(c, ctx, "execute_rowcount", func(ctx context.Context, drv Driver) (int64, error) {
		tag, err := drv.Exec(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	})
}

// ExecuteRowCount runs a statement and returns the number of rows affected.
func (c *Conn) ExecuteRowCount(ctx context.Context, sql string, args ...any) (int64, error) {
	return c.ExecuteRowCountAsync(ctx, sql, args...).Wait(ctx)
}

func execute(ctx context.Context, drv Driver, sql string, args []any) (Result, error) {
	if len(args) == 0 {
		args = []any{pgx.QueryExecModeSimpleProtocol}
	}
	rows, err := drv.Query(ctx, sql, args...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	var res Result
	if rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return Result{}, err
		}
		res.Values = vals
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	res.CommandTag = rows.CommandTag()
	res.RowsAffected = res.CommandTag.RowsAffected()
	return res, nil
}

// Select scans every row into dst, a pointer to a slice of structs, maps or
// scalars, using scany's column matching rules.
//
// Select waits for the operation to finish even if ctx expires while it is
// queued, so dst is never written after Select returns.
func (c *Conn) Select(ctx context.Context, dst any, sql string, args ...any) error {
	_, err := submit(c, ctx, "select", func(ctx context.Context, drv Driver) (struct{}, error) {
		return struct{}{}, pgxscan.Select(ctx, drv, dst, sql, args...)
	}).Result()
	return err
}

// Scan scans exactly one row into dst. It returns an error satisfying
// pgxscan.NotFound when there are no rows.
func (c *Conn) Scan(ctx context.Context, dst any, sql string, args ...any) error {
	_, err := submit(c, ctx, "scan", func(ctx context.Context, drv Driver) (struct{}, error) {
		return struct{}{}, pgxscan.Get(ctx, drv, dst, sql, args...)
	}).Result()
	return err
}

// PingAsync queues a connectivity check.
func (c *Conn) PingAsync(ctx context.Context) *Future[struct{}] {
	return submit(c, ctx, "ping", func(ctx context.Context, drv Driver) (struct{}, error) {
		return struct{}{}, drv.Ping(ctx)
	})
}

// Ping verifies the connection through the queue.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.PingAsync(ctx).Wait(ctx)
	return err
}
