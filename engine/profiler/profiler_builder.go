package profiler

import (
	"log/slog"
	"time"
)

// ProfilerOption is a functional option for configuring a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithUpdateInterval is an option builder that sets how often Tick logs statistics.
// Non-positive values are ignored.
//
// Parameters:
//   - interval: the minimum time between two reports
//
// Returns:
//   - ProfilerOption: a function that applies the interval option to a profiler
func WithUpdateInterval(interval time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithLogger is an option builder that sets the logger reports are written to.
//
// Parameters:
//   - logger: the destination logger; nil keeps slog.Default()
//
// Returns:
//   - ProfilerOption: a function that applies the logger option to a profiler
func WithLogger(logger *slog.Logger) ProfilerOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}
