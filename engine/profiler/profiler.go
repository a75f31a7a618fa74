// Package profiler tracks IK solve throughput and memory statistics and logs them periodically.
package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the statistics accumulated since the last report.
type Snapshot struct {
	Batches    int
	Chains     int
	Iterations int
	Converged  int
	SolveTime  time.Duration
	MaxBatch   time.Duration
	Elapsed    time.Duration
}

// ChainsPerSecond returns the solve throughput over the snapshot's wall-clock window.
func (s Snapshot) ChainsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Chains) / s.Elapsed.Seconds()
}

// AverageBatch returns the mean time spent per recorded batch.
func (s Snapshot) AverageBatch() time.Duration {
	if s.Batches == 0 {
		return 0
	}
	return s.SolveTime / time.Duration(s.Batches)
}

// Profiler accumulates IK batch statistics and outputs them at a configurable interval.
// It is safe for concurrent use.
type Profiler struct {
	mu             sync.Mutex
	logger         *slog.Logger
	stats          Snapshot
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and output goes to slog.Default().
//
// Parameters:
//   - options: variadic list of ProfilerOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		logger:         slog.Default(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// RecordBatch adds one solved batch to the running statistics.
//
// Parameters:
//   - chains: the number of chains in the batch
//   - iterations: the sum of iterations performed over all chains
//   - converged: the number of chains that converged
//   - duration: the wall-clock time the batch took
func (p *Profiler) RecordBatch(chains, iterations, converged int, duration time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Batches++
	p.stats.Chains += chains
	p.stats.Iterations += iterations
	p.stats.Converged += converged
	p.stats.SolveTime += duration
	p.stats.MaxBatch = max(p.stats.MaxBatch, duration)
}

// Snapshot returns the statistics accumulated since the last report without resetting them.
func (p *Profiler) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Elapsed = time.Since(p.lastTime)
	return s
}

// Tick should be called regularly (once per frame or per solve round) to emit statistics.
// Logs throughput, batch timing and memory statistics when the update interval has elapsed,
// then resets the accumulated counters.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := p.stats
	s.Elapsed = elapsed

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap bytes. Sys: bytes obtained from the OS.
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("ik profiler",
		"batches", s.Batches,
		"chains", s.Chains,
		"chains_per_sec", s.ChainsPerSecond(),
		"converged", s.Converged,
		"iterations", s.Iterations,
		"avg_batch", s.AverageBatch(),
		"max_batch", s.MaxBatch,
		"heap_mb", allocMB,
		"alloc_rate_mb_s", allocRateMB,
		"gc", gcCount,
		"gc_last_us", lastPauseUs,
		"gc_max_us", maxPauseUs,
		"sys_mb", sysMB,
	)

	p.stats = Snapshot{}
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
