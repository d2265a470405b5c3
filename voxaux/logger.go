package voxaux

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// nopHandler discards all records. Enabled reports false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by scenes. By default nothing is logged.
// Pass nil to restore silent behavior. Safe for concurrent use.
//
// Log levels used:
//   - [slog.LevelDebug]: tick cadence stats
//   - [slog.LevelInfo]: finished rebuilds and exports
//   - [slog.LevelWarn]: resolution or export size above soft limits
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
