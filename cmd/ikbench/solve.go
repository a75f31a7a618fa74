package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute/opencl_backend"
	"github.com/Carmen-Shannon/oxy-ik/engine/compute/wgpu_backend"
	"github.com/Carmen-Shannon/oxy-ik/engine/ik"
	"github.com/Carmen-Shannon/oxy-ik/engine/profiler"
	"github.com/spf13/cobra"
)

const (
	backendCPU    = "cpu"
	backendHost   = "host"
	backendWGPU   = "wgpu"
	backendOpenCL = "opencl"
)

// solveOptions holds the flags of the solve command.
type solveOptions struct {
	backend    string
	chains     int
	joints     int
	segment    float32
	iterations int
	tolerance  float32
	batchSize  int
	frames     int
	seed       uint64
	validate   bool

	gltfPath string
	skin     int
	mesh     int
	start    string
	end      string
}

func newSolveCommand(logger func() *slog.Logger) *cobra.Command {
	opts := solveOptions{}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a batch of chains and compare the chosen backend with the CPU solver",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.gltfPath != "" && (opts.start == "" || opts.end == "") {
				return fmt.Errorf("--gltf requires --start and --end")
			}
			switch opts.backend {
			case backendCPU, backendHost, backendWGPU, backendOpenCL:
			default:
				return fmt.Errorf("unknown backend %q", opts.backend)
			}
			if opts.chains <= 0 {
				return fmt.Errorf("--chains must be positive, got %d", opts.chains)
			}
			if opts.frames <= 0 {
				return fmt.Errorf("--frames must be positive, got %d", opts.frames)
			}
			return runSolve(cmd.OutOrStdout(), logger(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", backendHost, "solver backend: cpu, host, wgpu or opencl")
	f.IntVar(&opts.chains, "chains", 1024, "number of chains per batch")
	f.IntVar(&opts.joints, "joints", 4, "joints per synthetic chain")
	f.Float32Var(&opts.segment, "segment", 1, "segment length of synthetic chains")
	f.IntVar(&opts.iterations, "iterations", 10, "maximum FABRIK iterations")
	f.Float32Var(&opts.tolerance, "tolerance", 0.01, "convergence tolerance")
	f.IntVar(&opts.batchSize, "batch-size", 0, "chains per device dispatch (0 sizes from the device)")
	f.IntVar(&opts.frames, "frames", 1, "number of times the batch is solved")
	f.Uint64Var(&opts.seed, "seed", 1, "seed for target generation")
	f.BoolVar(&opts.validate, "validate", false, "validate WGSL with naga on the host backend")
	f.StringVar(&opts.gltfPath, "gltf", "", "load the rig from a glTF/GLB file instead of generating one")
	f.IntVar(&opts.skin, "skin", 0, "skin index in the glTF file")
	f.IntVar(&opts.mesh, "mesh", -1, "use the skin of this skinned mesh instead of --skin")
	f.StringVar(&opts.start, "start", "", "chain root bone name (with --gltf)")
	f.StringVar(&opts.end, "end", "", "chain tip bone name (with --gltf)")
	return cmd
}

func runSolve(out io.Writer, logger *slog.Logger, opts solveOptions) error {
	ik.SetLogger(logger)
	defer ik.SetLogger(nil)

	var (
		r   *rig
		err error
	)
	if opts.gltfPath != "" {
		r, err = gltfRig(opts.gltfPath, opts.skin, opts.mesh, opts.start, opts.end)
	} else {
		r, err = syntheticRig(opts.joints, opts.segment)
	}
	if err != nil {
		return err
	}
	entries := r.entries(opts.chains, opts.seed)

	prof := profiler.NewProfiler(profiler.WithLogger(logger), profiler.WithUpdateInterval(time.Second))
	solver, name, cleanup := openSolver(logger, prof, opts)
	defer cleanup()

	var results []ik.IKSolveResult
	start := time.Now()
	for range opts.frames {
		frame := time.Now()
		results = solver.SolveBatch(entries)
		if name == backendCPU {
			converged, iterations := tally(results)
			prof.RecordBatch(len(results), iterations, converged, time.Since(frame))
		}
		prof.Tick()
	}
	elapsed := time.Since(start)
	if len(results) != len(entries) {
		return fmt.Errorf("%s solver returned %d results for %d chains", name, len(results), len(entries))
	}

	converged, _ := tally(results)
	var sumErr, maxErr, maxApplied float64
	for i, res := range results {
		sumErr += float64(res.FinalError)
		maxErr = math.Max(maxErr, float64(res.FinalError))
		if res.Converged {
			maxApplied = math.Max(maxApplied, float64(appliedTipError(entries[i], res)))
		}
	}

	fmt.Fprintf(out, "backend:        %s\n", name)
	fmt.Fprintf(out, "chains:         %d x %d joints (reach %.3f)\n", len(entries), r.chain.Len(), r.length)
	fmt.Fprintf(out, "frames:         %d in %v (%v/frame)\n", opts.frames, elapsed, elapsed/time.Duration(opts.frames))
	fmt.Fprintf(out, "throughput:     %.0f chains/s\n", float64(len(entries)*opts.frames)/elapsed.Seconds())
	fmt.Fprintf(out, "converged:      %d/%d\n", converged, len(results))
	fmt.Fprintf(out, "mean error:     %.6f\n", sumErr/float64(len(results)))
	fmt.Fprintf(out, "max error:      %.6f\n", maxErr)
	fmt.Fprintf(out, "applied tip:    %.6f max distance after posing converged chains\n", maxApplied)

	if name != backendCPU {
		cpu := ik.NewSolver(ik.WithTolerance(opts.tolerance), ik.WithMaxIterations(opts.iterations))
		reference := cpu.SolveBatch(entries)
		var maxDev float64
		for i := range results {
			maxDev = math.Max(maxDev, resultDeviation(results[i], reference[i]))
		}
		fmt.Fprintf(out, "cpu deviation:  %.3g\n", maxDev)
	}
	return nil
}

// openSolver returns the solver for the requested backend. Any device failure falls back to the
// CPU solver with a warning. GPU batches are recorded to prof by the solver itself.
func openSolver(logger *slog.Logger, prof *profiler.Profiler, opts solveOptions) (ik.BatchSolver, string, func()) {
	cpu := ik.NewSolver(ik.WithTolerance(opts.tolerance), ik.WithMaxIterations(opts.iterations))
	if opts.backend == backendCPU {
		return cpu, backendCPU, func() {}
	}

	device, err := openDevice(opts)
	if err != nil {
		logger.Warn("compute device unavailable, using the CPU solver", "backend", opts.backend, "err", err)
		return cpu, backendCPU, func() {}
	}

	gpu := ik.NewGPUSolver(device,
		ik.WithGPUTolerance(opts.tolerance),
		ik.WithGPUMaxIterations(opts.iterations),
		ik.WithBatchSize(opts.batchSize),
		ik.WithProfiler(prof),
	)
	if err := gpu.Initialize(); err != nil {
		logger.Warn("gpu solver initialization failed, using the CPU solver", "device", device.Name(), "err", err)
		device.Release()
		return cpu, backendCPU, func() {}
	}

	logger.Info("gpu solver ready", "device", device.Name(), "batch_size", gpu.BatchSize())
	return gpu, device.Name(), func() {
		gpu.Shutdown()
		device.Release()
	}
}

func openDevice(opts solveOptions) (compute.Device, error) {
	switch opts.backend {
	case backendHost:
		return compute.NewHostDevice(compute.WithSourceValidation(opts.validate)), nil
	case backendWGPU:
		return wgpu_backend.NewDevice()
	case backendOpenCL:
		return opencl_backend.NewDevice()
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.backend)
	}
}

func tally(results []ik.IKSolveResult) (converged, iterations int) {
	for _, res := range results {
		if res.Converged {
			converged++
		}
		iterations += res.Iterations
	}
	return converged, iterations
}
