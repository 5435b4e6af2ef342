package pgasync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type typedCause struct{}

func (e *typedCause) Error() string { return "typed cause" }

func TestSafeError_UnwrapSupportsErrorsIsAs(t *testing.T) {
	t.Parallel()

	sentinel := &typedCause{}
	err := &SafeError{msg: "safe message", cause: sentinel}

	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to match wrapped cause")
	}

	var got *typedCause
	if !errors.As(err, &got) {
		t.Fatal("expected errors.As to extract wrapped cause")
	}
	if err.Error() != "safe message" {
		t.Fatalf("Error()=%q, want %q", err.Error(), "safe message")
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "unique-violation", err: &pgconn.PgError{Code: "23505"}, want: KindIntegrity},
		{name: "wrapped-fk-violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), want: KindIntegrity},
		{name: "invalid-datetime", err: &pgconn.PgError{Code: "22007"}, want: KindData},
		{name: "syntax-error", err: &pgconn.PgError{Code: "42601"}, want: KindProgramming},
		{name: "undefined-table", err: &pgconn.PgError{Code: "42P01"}, want: KindProgramming},
		{name: "admin-shutdown", err: &pgconn.PgError{Code: "57P01"}, want: KindOperational},
		{name: "connection-failure", err: &pgconn.PgError{Code: "08006"}, want: KindOperational},
		{name: "serialization-failure", err: &pgconn.PgError{Code: "40001"}, want: KindDatabase},
		{name: "short-code", err: &pgconn.PgError{Code: "4"}, want: KindDatabase},
		{name: "closed", err: ErrClosed, want: KindOperational},
		{name: "disconnected", err: fmt.Errorf("query: %w", ErrDisconnected), want: KindOperational},
		{name: "deadline", err: context.DeadlineExceeded, want: KindOperational},
		{name: "plain", err: errors.New("boom"), want: KindDatabase},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyError(tc.err); got != tc.want {
				t.Fatalf("ClassifyError()=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyError_LeavesErrorUnchanged(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	var err error = pgErr
	_ = ClassifyError(err)

	var got *pgconn.PgError
	if !errors.As(err, &got) || got != pgErr {
		t.Fatal("expected the original *pgconn.PgError")
	}
}

func TestErrorKind_String(t *testing.T) {
	t.Parallel()

	want := map[ErrorKind]string{
		KindNone:        "none",
		KindDatabase:    "database",
		KindOperational: "operational",
		KindIntegrity:   "integrity",
		KindData:        "data",
		KindProgramming: "programming",
	}
	for kind, s := range want {
		if kind.String() != s {
			t.Fatalf("%d.String()=%q, want %q", int(kind), kind.String(), s)
		}
	}
}
