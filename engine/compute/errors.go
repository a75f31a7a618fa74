package compute

import "errors"

var (
	// ErrReleased is returned when a released device, program or buffer is used.
	ErrReleased = errors.New("compute: resource released")

	// ErrKernelNotFound is returned when a program has no entry point with the requested name.
	ErrKernelNotFound = errors.New("compute: kernel not found")

	// ErrForeignResource is returned when a buffer or kernel created by another device is passed in.
	ErrForeignResource = errors.New("compute: resource belongs to a different device")

	// ErrOutOfRange is returned when a transfer exceeds the bounds of a buffer.
	ErrOutOfRange = errors.New("compute: transfer out of buffer range")
)
