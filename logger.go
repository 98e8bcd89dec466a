package semistaticlights

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports
// false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger; SetLogger may race with logging.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for this package and the registered
// compute device. By default nothing is logged. Pass nil to restore the
// silent default.
//
// Log levels used:
//   - [slog.LevelDebug]: per-stage timings, skipped recomputations
//   - [slog.LevelInfo]: resource (re)allocation, device selection
//   - [slog.LevelWarn]: device fallback, debug export failures
//
// Example:
//
//	semistaticlights.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	if d := RegisteredDevice(); d != nil {
		propagateLogger(d, l)
	}
}

// Logger returns the current logger. Sub-packages (gpu/, debugviz/) use it to
// share one configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func propagateLogger(d any, l *slog.Logger) {
	if ls, ok := d.(interface{ SetLogger(*slog.Logger) }); ok {
		ls.SetLogger(l)
	}
}
