package wgpu_backend

// DeviceOption is a functional option for configuring a WebGPU compute device during construction.
type DeviceOption func(*wgpuDevice)

// WithLabel is an option builder that sets the debug label prefix of every device object.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - DeviceOption: a function that applies the label option to a device
func WithLabel(label string) DeviceOption {
	return func(d *wgpuDevice) {
		if label != "" {
			d.label = label
		}
	}
}

// WithComputeUnits is an option builder that overrides the compute unit count reported to
// batch sizing. WebGPU does not expose the real count.
//
// Parameters:
//   - units: the number of compute units to report
//
// Returns:
//   - DeviceOption: a function that applies the compute unit option to a device
func WithComputeUnits(units int) DeviceOption {
	return func(d *wgpuDevice) {
		if units > 0 {
			d.computeUnits = units
		}
	}
}

// WithForceFallbackAdapter is an option builder that requests the software fallback adapter.
//
// Parameters:
//   - force: whether to force the fallback adapter
//
// Returns:
//   - DeviceOption: a function that applies the fallback option to a device
func WithForceFallbackAdapter(force bool) DeviceOption {
	return func(d *wgpuDevice) {
		d.forceFallbackAdapter = force
	}
}

// WithLowPower is an option builder that prefers an integrated, low power adapter.
//
// Parameters:
//   - lowPower: whether to prefer the low power adapter
//
// Returns:
//   - DeviceOption: a function that applies the power preference option to a device
func WithLowPower(lowPower bool) DeviceOption {
	return func(d *wgpuDevice) {
		d.lowPower = lowPower
	}
}
