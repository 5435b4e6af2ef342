package pgasync

import (
	"context"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/tracelog"
)

// newDefaultLogger returns an slog logger backed by a charmbracelet/log
// handler writing to stderr at the given level.
func newDefaultLogger(level string) *slog.Logger {
	lvl, err := charmlog.ParseLevel(level)
	if err != nil {
		lvl = charmlog.WarnLevel
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           lvl,
		Prefix:          "pgasync",
		ReportTimestamp: true,
	})
	return slog.New(handler)
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return slog.LevelDebug
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// newTraceLog bridges pgx driver events into logger. SQL text and arguments
// are dropped unless logQueries is set.
func newTraceLog(logger *slog.Logger, level string, logQueries bool) *tracelog.TraceLog {
	lvl, err := tracelog.LogLevelFromString(level)
	if err != nil {
		lvl = tracelog.LogLevelWarn
	}

	return &tracelog.TraceLog{
		Logger: tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
			attrs := make([]any, 0, 2*len(data)+2)
			attrs = append(attrs, "pgx_level", level.String())
			for k, v := range data {
				if !logQueries && (k == "sql" || k == "args") {
					continue
				}
				attrs = append(attrs, k, v)
			}
			logger.Log(ctx, slogLevel(level), "pgx: "+msg, attrs...)
		}),
		LogLevel: lvl,
	}
}

// buildTracer combines the log bridge with any OpenTelemetry tracer.
func buildTracer(traceLog *tracelog.TraceLog, otel *otelpgx.Tracer) pgx.QueryTracer {
	if otel == nil {
		return traceLog
	}
	return multitracer.New(traceLog, otel)
}
