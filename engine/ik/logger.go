package ik

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards every record. Enabled reports false so callers
// skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by the IK engine. By default nothing is logged.
// Pass nil to restore the silent default. Safe for concurrent use.
//
// Log levels used:
//   - [slog.LevelDebug]: buffer growth, batch sizing, sub-batch dispatch
//   - [slog.LevelInfo]: solver initialization and shutdown
//   - [slog.LevelWarn]: rejected input (invalid chains, size mismatches, uninitialized solver)
//
// Parameters:
//   - l: the logger to use, or nil
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger currently used by the IK engine.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
