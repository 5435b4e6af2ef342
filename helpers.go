package pgasync

import "context"

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ Pinger = (*Conn)(nil)

// HealthStatus is the response type for health check endpoints.
type HealthStatus struct {
	Status string `json:"status"`

	// Busy reports whether a *Conn was executing other work when the check
	// arrived. It is sampled before the ping is queued.
	Busy bool `json:"busy"`
}

// HealthCheck verifies database connectivity and returns a status suitable for
// health check API endpoints. For a *Conn the ping is queued like any other
// operation.
func HealthCheck(ctx context.Context, p Pinger) (*HealthStatus, error) {
	status := &HealthStatus{Status: "ok"}
	if c, ok := p.(*Conn); ok {
		status.Busy = c.Busy()
	}

	if err := p.Ping(ctx); err != nil {
		return nil, &SafeError{msg: "pgasync: health check failed", cause: err}
	}
	return status, nil
}
