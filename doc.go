// Package pgasync wraps a single pgx v5 connection in a queued, future-based
// query API that returns ordered, named-field rows.
//
//	conn, err := pgasync.Open(ctx, pgasync.Config{Host: "localhost", Database: "app"})
//	if err != nil {
//		return err
//	}
//	defer conn.Close(ctx)
//
//	user, err := conn.Get(ctx, "SELECT id, name FROM users WHERE id = $1", 1)
//	if err != nil {
//		return err
//	}
//	fmt.Println(user.Value("name"))
//
// Guarantees:
//
//   - One driver connection per Conn; at most one statement in flight.
//   - Work is executed in submission order by the connection's loop goroutine.
//   - Driver errors are returned unchanged; only connect-path errors are
//     wrapped, in a SafeError whose message never contains credentials.
//   - Rows are immutable once built.
//
// Every blocking method has an Async twin returning a *Future. Pooling,
// retries and transactions are deliberately out of scope; use pgxpool
// directly when those are needed.
package pgasync
