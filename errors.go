package pgasync

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrClosed is returned for work submitted to, or still queued on, a
	// closed Conn.
	ErrClosed = errors.New("pgasync: connection closed")

	// ErrMultipleRows is returned by One when the query yields more than one row.
	ErrMultipleRows = errors.New("pgasync: multiple rows returned for single-row query")

	// ErrDisconnected is returned for work run after a failed Reconnect left
	// the Conn without a driver connection.
	ErrDisconnected = errors.New("pgasync: not connected")
)

// SafeError wraps a cause with an error string safe for default production
// logging. The wrapped cause may still contain sensitive detail.
type SafeError struct {
	msg   string
	cause error
}

func (e *SafeError) Error() string { return e.msg }
func (e *SafeError) Unwrap() error { return e.cause }

// ErrorKind is a coarse classification of a server error by SQLSTATE class.
type ErrorKind int

const (
	// KindNone means err is nil.
	KindNone ErrorKind = iota
	// KindDatabase covers any error not matched by a narrower kind.
	KindDatabase
	KindOperational
	KindIntegrity
	KindData
	KindProgramming
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOperational:
		return "operational"
	case KindIntegrity:
		return "integrity"
	case KindData:
		return "data"
	case KindProgramming:
		return "programming"
	default:
		return "database"
	}
}

// ClassifyError reports the kind of err without altering it. Errors without a
// SQLSTATE are operational when they come from the connection itself
// (connect failures, timeouts, a closed Conn) and database otherwise.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) || errors.Is(err, ErrClosed) || errors.Is(err, ErrDisconnected) ||
			errors.Is(err, context.DeadlineExceeded) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return KindOperational
		}
		return KindDatabase
	}

	if len(pgErr.Code) < 2 {
		return KindDatabase
	}
	switch pgErr.Code[:2] {
	case "23":
		return KindIntegrity
	case "22":
		return KindData
	case "42", "26", "34", "3D", "3F":
		return KindProgramming
	case "08", "53", "57", "58":
		return KindOperational
	default:
		return KindDatabase
	}
}
