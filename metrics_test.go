package pgasync

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsOperationsByOutcome(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	drv := &TestDriver{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			if sql == "bad" {
				return nil, &pgconn.PgError{Code: "42601"}
			}
			return NewRows([]string{"n"}).AddRow(1).Build(), nil
		},
	}
	c := openTestConn(t, drv, WithMetrics(reg))
	ctx := context.Background()

	_, err := c.Query(ctx, "good")
	require.NoError(t, err)
	_, err = c.Get(ctx, "good")
	require.NoError(t, err)
	_, err = c.Query(ctx, "bad")
	require.Error(t, err)

	require.NoError(t, c.Close(ctx))
	_, err = c.Query(ctx, "good")
	require.ErrorIs(t, err, ErrClosed)

	m := c.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("query", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("get", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("query", "programming")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.queued))
	assert.Equal(t, 3, testutil.CollectAndCount(m.operations))
}

func TestMetrics_SharedRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	drv := &TestDriver{
		ExecFunc: func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 2"), nil
		},
	}

	a := openTestConn(t, drv, WithMetrics(reg))
	defer a.Close(context.Background())
	b := openTestConn(t, drv, WithMetrics(reg))
	defer b.Close(context.Background())

	for _, c := range []*Conn{a, b} {
		n, err := c.ExecuteRowCount(context.Background(), "UPDATE t SET x = 1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	}

	assert.Same(t, a.metrics.operations, b.metrics.operations)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.metrics.operations.WithLabelValues("execute_rowcount", "ok")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	m, err := newMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	m.enqueued()
	m.dequeued(3)
	m.observe("query", 0, nil)
}

func TestMetrics_ConflictingCollectorIsSafeError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pgasync_operations_total",
		Help: "something else",
	}))

	_, err := Open(context.Background(), testConfig(), WithDialer((&TestDriver{}).Dial), WithMetrics(reg))
	require.Error(t, err)
	var se *SafeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "pgasync: register metrics failed", err.Error())
}
