//go:build !opencl

package opencl_backend

import (
	"github.com/Carmen-Shannon/oxy-ik/engine/compute"
)

// clDevice holds the construction options when the OpenCL binding is not compiled in.
type clDevice struct {
	cpuOnly      bool
	buildOptions string
}

// NewDevice reports ErrUnavailable because this binary was built without the opencl tag.
//
// Parameters:
//   - options: variadic list of DeviceOption functions, applied and otherwise ignored
//
// Returns:
//   - compute.Device: always nil
//   - error: ErrUnavailable
func NewDevice(options ...DeviceOption) (compute.Device, error) {
	d := &clDevice{}
	for _, opt := range options {
		opt(d)
	}
	return nil, ErrUnavailable
}
