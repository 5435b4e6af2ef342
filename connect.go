package pgasync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures Open for advanced use cases.
type Option func(*connectOptions)

type connectOptions struct {
	pgxConfigModifier func(*pgx.ConnConfig)
	dial              DialFunc
	tracing           bool
	tracingOpts       []otelpgx.Option
	registerer        prometheus.Registerer
}

// WithPgxConfig allows low-level pgx configuration.
//
// The modifier runs after standard pgasync configuration is applied, and
// again on every Reconnect.
func WithPgxConfig(fn func(*pgx.ConnConfig)) Option {
	return func(o *connectOptions) {
		o.pgxConfigModifier = fn
	}
}

// WithDialer replaces pgx.ConnectConfig as the way a Driver is opened.
func WithDialer(dial DialFunc) Option {
	return func(o *connectOptions) {
		o.dial = dial
	}
}

// WithTracing attaches an OpenTelemetry tracer (otelpgx) alongside the log
// tracer.
func WithTracing(opts ...otelpgx.Option) Option {
	return func(o *connectOptions) {
		o.tracing = true
		o.tracingOpts = opts
	}
}

// WithMetrics registers per-operation Prometheus collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *connectOptions) {
		o.registerer = reg
	}
}

func collectOptions(opts []Option) connectOptions {
	o := connectOptions{dial: dialPgx}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.dial == nil {
		o.dial = dialPgx
	}
	return o
}

// pgxConfig translates cfg into a pgx configuration. cfg must already have
// its defaults applied.
func pgxConfig(cfg Config, o connectOptions, logger *slog.Logger) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(cfg.connString())
	if err != nil {
		// SECURITY: parse errors from upstream may contain DSN content.
		return nil, &SafeError{
			msg:   fmt.Sprintf("pgasync: invalid connection settings (target=%s)", cfg.target()),
			cause: err,
		}
	}
	connCfg.ConnectTimeout = cfg.ConnectTimeout

	var otel *otelpgx.Tracer
	if o.tracing {
		otel = otelpgx.NewTracer(o.tracingOpts...)
	}
	connCfg.Tracer = buildTracer(newTraceLog(logger, cfg.LogLevel, cfg.LogQueries), otel)

	if o.pgxConfigModifier != nil {
		o.pgxConfigModifier(connCfg)
	}
	return connCfg, nil
}

// connect dials and pings a fresh Driver.
func connect(ctx context.Context, cfg Config, o connectOptions, logger *slog.Logger) (Driver, error) {
	connCfg, err := pgxConfig(cfg, o, logger)
	if err != nil {
		return nil, err
	}

	drv, err := o.dial(ctx, connCfg)
	if err != nil {
		// SECURITY: cause may include sensitive details; keep outer error safe.
		return nil, &SafeError{
			msg:   fmt.Sprintf("pgasync: failed to connect (target=%s)", cfg.target()),
			cause: err,
		}
	}

	if err := drv.Ping(ctx); err != nil {
		_ = drv.Close(context.WithoutCancel(ctx))
		return nil, &SafeError{
			msg:   fmt.Sprintf("pgasync: initial ping failed (target=%s)", cfg.target()),
			cause: err,
		}
	}

	return drv, nil
}
