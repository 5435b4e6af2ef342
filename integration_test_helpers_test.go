//go:build integration

package pgasync

import (
	"context"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	integrationDSNURLPattern   = regexp.MustCompile(`(?i)postgres(?:ql)?://[^\s]+`)
	integrationPasswordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)
)

// startPostgres runs a throwaway PostgreSQL container and returns a Config
// pointing at it. The container is terminated when the test ends.
func startPostgres(ctx context.Context, t *testing.T) Config {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pgasync_test"),
		postgres.WithUsername("pgasync"),
		postgres.WithPassword("pgasync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, sanitizeErrorMessage(err))
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pgContainer.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	mapped, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return Config{
		Host:     host,
		Port:     port,
		Database: "pgasync_test",
		User:     "pgasync",
		Password: "pgasync",
		SSLMode:  "disable",
		Logger:   discardLogger(),
	}
}

// openIntegrationConn opens a Conn against a fresh container and creates the
// fixture table used by the tests.
func openIntegrationConn(t *testing.T) *Conn {
	t.Helper()
	ctx := context.Background()

	conn, err := Open(ctx, startPostgres(ctx, t))
	require.NoError(t, err, sanitizeErrorMessage(err))
	t.Cleanup(func() { _ = conn.Close(context.Background()) })

	_, err = conn.Execute(ctx, `CREATE TABLE "test" (
		id serial PRIMARY KEY,
		an_int integer,
		some_chars varchar(50)
	)`)
	require.NoError(t, err)
	for _, r := range []struct {
		n int
		s string
	}{
		{7, "blah blah blah"},
		{234237, "the quick brown fox"},
		{146, "jumped over the lazy dog"},
	} {
		_, err = conn.Execute(ctx, `INSERT INTO "test" (an_int, some_chars) VALUES ($1, $2)`, r.n, r.s)
		require.NoError(t, err)
	}
	return conn
}

func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	msg = integrationDSNURLPattern.ReplaceAllString(msg, "[REDACTED_DSN]")
	msg = integrationPasswordPattern.ReplaceAllString(msg, "password=[REDACTED]")
	return msg
}
