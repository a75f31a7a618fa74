package compute

// HostDeviceOption is a functional option for configuring a host Device during construction.
type HostDeviceOption func(*hostDevice)

// WithWorkers is an option builder that sets the number of worker goroutines executing kernels.
// Values <= 0 select GOMAXPROCS.
//
// Parameters:
//   - workers: the number of workers
//
// Returns:
//   - HostDeviceOption: a function that applies the workers option to a host device
func WithWorkers(workers int) HostDeviceOption {
	return func(d *hostDevice) {
		if workers > 0 {
			d.workers = workers
		}
	}
}

// WithSourceValidation is an option builder that makes CreateProgram compile the program's WGSL
// source with naga and fail on errors, so shader mistakes are caught without a GPU.
//
// Parameters:
//   - validate: true to validate WGSL sources
//
// Returns:
//   - HostDeviceOption: a function that applies the validation option to a host device
func WithSourceValidation(validate bool) HostDeviceOption {
	return func(d *hostDevice) {
		d.validate = validate
	}
}
