package pgasync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// shape is the column layout shared by every Row of one result set.
type shape struct {
	columns []string
	index   map[string]int
}

func newShape(fields []pgconn.FieldDescription) *shape {
	s := &shape{
		columns: make([]string, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	for i, fd := range fields {
		s.columns[i] = fd.Name
		// Later duplicates win, as a dict built from the tuple would.
		s.index[fd.Name] = i
	}
	return s
}

// Row is one result tuple viewed as an ordered column -> value mapping.
// A Row is immutable; the accessors return copies where mutation could leak.
type Row struct {
	shape  *shape
	values []any
}

// NewRow builds a Row from parallel column and value slices. It panics if
// their lengths differ.
func NewRow(columns []string, values []any) Row {
	if len(columns) != len(values) {
		panic("pgasync.NewRow: column count mismatch")
	}
	fields := make([]pgconn.FieldDescription, len(columns))
	for i, c := range columns {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return Row{shape: newShape(fields), values: append([]any(nil), values...)}
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Columns returns the column names in result order.
func (r Row) Columns() []string {
	if r.shape == nil {
		return nil
	}
	return append([]string(nil), r.shape.columns...)
}

// Values returns the values in result order.
func (r Row) Values() []any {
	return append([]any(nil), r.values...)
}

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	if r.shape == nil {
		return nil, false
	}
	i, ok := r.shape.index[name]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Value returns the value of the named column, or nil if there is none.
func (r Row) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

// Has reports whether the row has the named column.
func (r Row) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Map returns the row as a fresh map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	if r.shape == nil {
		return m
	}
	for name, i := range r.shape.index {
		m[name] = r.values[i]
	}
	return m
}

// Decode copies the row into dst, a pointer to a struct or map. Struct
// fields are matched by their `db` tag, falling back to a case-insensitive
// match on the field name.
func (r Row) Decode(dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "db",
		Result:  dst,
	})
	if err != nil {
		return fmt.Errorf("pgasync: row decoder: %w", err)
	}
	if err := dec.Decode(r.Map()); err != nil {
		return fmt.Errorf("pgasync: decode row: %w", err)
	}
	return nil
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	if r.shape != nil {
		for i, name := range r.shape.columns {
			if r.shape.index[name] != i {
				continue
			}
			if !first {
				buf.WriteByte(',')
			}
			first = false
			key, err := json.Marshal(name)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(r.values[i])
			if err != nil {
				return nil, fmt.Errorf("pgasync: encode column %q: %w", name, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Row) String() string {
	var sb strings.Builder
	sb.WriteString("Row(")
	if r.shape != nil {
		for i, name := range r.shape.columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", name, r.values[i])
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// collectRows drains rows into Rows sharing a single shape.
func collectRows(rows pgx.Rows) ([]Row, error) {
	var s *shape
	return pgx.CollectRows(rows, func(cr pgx.CollectableRow) (Row, error) {
		if s == nil {
			s = newShape(cr.FieldDescriptions())
		}
		vals, err := cr.Values()
		if err != nil {
			return Row{}, err
		}
		return Row{shape: s, values: vals}, nil
	})
}

// firstRow returns the first row of rows, or nil when there are none. When
// strict, a second row is an ErrMultipleRows failure.
func firstRow(rows pgx.Rows, strict bool) (*Row, error) {
	defer rows.Close()

	var first *Row
	for rows.Next() {
		if first != nil {
			return nil, ErrMultipleRows
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		first = &Row{shape: newShape(rows.FieldDescriptions()), values: vals}
		if !strict {
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return first, nil
}
