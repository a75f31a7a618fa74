// Package opencl_backend implements compute.Device on OpenCL through jgillich/go-opencl.
// The binding needs cgo and an OpenCL ICD loader, so the device is only built with the
// opencl build tag; without it NewDevice reports ErrUnavailable.
package opencl_backend

import "errors"

// ErrUnavailable is returned by NewDevice when the binary was built without the opencl tag.
var ErrUnavailable = errors.New("opencl: backend not built, rebuild with -tags opencl")

// DeviceOption is a functional option for configuring an OpenCL compute device during construction.
type DeviceOption func(*clDevice)

// WithCPUOnly is an option builder that skips GPU devices and opens a CPU device directly.
//
// Parameters:
//   - cpuOnly: whether to restrict device selection to CPUs
//
// Returns:
//   - DeviceOption: a function that applies the device type option to a device
func WithCPUOnly(cpuOnly bool) DeviceOption {
	return func(d *clDevice) {
		d.cpuOnly = cpuOnly
	}
}

// WithBuildOptions is an option builder that sets the compiler flags passed to every program build.
//
// Parameters:
//   - options: the OpenCL build options, e.g. "-cl-fast-relaxed-math"
//
// Returns:
//   - DeviceOption: a function that applies the build options to a device
func WithBuildOptions(options string) DeviceOption {
	return func(d *clDevice) {
		d.buildOptions = options
	}
}
