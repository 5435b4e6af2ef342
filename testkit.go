package pgasync

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotMocked is returned when a TestDriver method is called without a
// corresponding Func field set.
var ErrNotMocked = errors.New("pgasync.TestDriver: method not mocked, set the corresponding Func field")

// TestDriver is a mock Driver for unit tests. Install it with
//
//	pgasync.WithDialer(drv.Dial)
type TestDriver struct {
	ExecFunc  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	PingFunc  func(ctx context.Context) error
	CloseFunc func(ctx context.Context) error
}

var _ Driver = (*TestDriver)(nil)

// Dial is a DialFunc that always returns t.
func (t *TestDriver) Dial(context.Context, *pgx.ConnConfig) (Driver, error) {
	return t, nil
}

func (t *TestDriver) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.ExecFunc != nil {
		return t.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, ErrNotMocked
}

func (t *TestDriver) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.QueryFunc != nil {
		return t.QueryFunc(ctx, sql, args...)
	}
	return &ErrRows{ErrValue: ErrNotMocked}, ErrNotMocked
}

func (t *TestDriver) Ping(ctx context.Context) error {
	if t.PingFunc != nil {
		return t.PingFunc(ctx)
	}
	return nil
}

func (t *TestDriver) Close(ctx context.Context) error {
	if t.CloseFunc != nil {
		return t.CloseFunc(ctx)
	}
	return nil
}

// ErrRows implements pgx.Rows and always returns the configured error.
type ErrRows struct {
	// ErrValue is returned by Err(), Scan(), and Values().
	ErrValue error
}

func (r *ErrRows) Close()                                       {}
func (r *ErrRows) Err() error                                   { return r.ErrValue }
func (r *ErrRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *ErrRows) Conn() *pgx.Conn                              { return nil }
func (r *ErrRows) RawValues() [][]byte                          { return nil }
func (r *ErrRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *ErrRows) Next() bool                                   { return false }
func (r *ErrRows) Values() ([]any, error)                       { return nil, r.ErrValue }

func (r *ErrRows) Scan(dest ...any) error {
	if r.ErrValue != nil {
		return r.ErrValue
	}
	return fmt.Errorf("pgasync.ErrRows: Scan called with nil ErrValue")
}

// RowsBuilder builds pgx.Rows backed by in-memory rows.
type RowsBuilder struct {
	columns []string
	rows    [][]any
	tag     pgconn.CommandTag
	err     error
}

// NewRows creates a new RowsBuilder. The command tag defaults to
// "SELECT <n>".
func NewRows(columns []string) *RowsBuilder {
	return &RowsBuilder{columns: columns}
}

// AddRow appends a row. It panics on arity mismatch.
func (b *RowsBuilder) AddRow(values ...any) *RowsBuilder {
	if len(values) != len(b.columns) {
		panic("pgasync.RowsBuilder: column count mismatch")
	}
	b.rows = append(b.rows, values)
	return b
}

// CommandTag overrides the tag reported once the rows are closed.
func (b *RowsBuilder) CommandTag(tag string) *RowsBuilder {
	b.tag = pgconn.NewCommandTag(tag)
	return b
}

// CloseError makes Err report err once every row has been read, the way a
// server error after the last row surfaces in pgx.
func (b *RowsBuilder) CloseError(err error) *RowsBuilder {
	b.err = err
	return b
}

// Build returns a pgx.Rows cursor for the builder data.
func (b *RowsBuilder) Build() pgx.Rows {
	tag := b.tag
	if tag.String() == "" {
		tag = pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(b.rows)))
	}
	return &fakeRows{
		columns:  b.columns,
		data:     b.rows,
		idx:      -1,
		tag:      tag,
		closeErr: b.err,
	}
}

type fakeRows struct {
	columns  []string
	data     [][]any
	idx      int
	closed   bool
	tag      pgconn.CommandTag
	closeErr error
	err      error
}

func (r *fakeRows) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.err == nil {
		r.err = r.closeErr
	}
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) CommandTag() pgconn.CommandTag {
	return r.tag
}

func (r *fakeRows) Conn() *pgx.Conn {
	return nil
}

func (r *fakeRows) RawValues() [][]byte {
	return nil
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, col := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: col}
	}
	return fields
}

func (r *fakeRows) Next() bool {
	if r.closed {
		return false
	}

	r.idx++
	if r.idx >= len(r.data) {
		r.Close()
		return false
	}
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return pgx.ErrNoRows
	}

	row := r.data[r.idx]
	if len(dest) != len(row) {
		err := fmt.Errorf("pgasync.fakeRows: scan dest count %d != column count %d", len(dest), len(row))
		r.err = err
		return err
	}

	for i, val := range row {
		if err := assignScanValue("pgasync.fakeRows", i, dest[i], val); err != nil {
			r.err = err
			return err
		}
	}

	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, pgx.ErrNoRows
	}
	return append([]any(nil), r.data[r.idx]...), nil
}

func assignScanValue(prefix string, idx int, dest any, val any) error {
	switch d := dest.(type) {
	case *string:
		v, ok := val.(string)
		if !ok {
			return fmt.Errorf("%s: expected string at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *int:
		v, ok := val.(int)
		if !ok {
			return fmt.Errorf("%s: expected int at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *int32:
		v, ok := val.(int32)
		if !ok {
			return fmt.Errorf("%s: expected int32 at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *int64:
		v, ok := val.(int64)
		if !ok {
			return fmt.Errorf("%s: expected int64 at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *bool:
		v, ok := val.(bool)
		if !ok {
			return fmt.Errorf("%s: expected bool at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *float64:
		v, ok := val.(float64)
		if !ok {
			return fmt.Errorf("%s: expected float64 at column %d, got %T", prefix, idx, val)
		}
		*d = v
	case *any:
		*d = val
	default:
		return fmt.Errorf("%s: unsupported scan target type %T at column %d", prefix, dest, idx)
	}

	return nil
}
