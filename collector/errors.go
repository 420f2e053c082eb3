package collector

import "errors"

var (
	// ErrBackendRequired is returned when a collector is created without a backend.
	ErrBackendRequired = errors.New("storage backend required")

	// ErrReleased is returned when a released collector is asked to capture.
	ErrReleased = errors.New("collector released")

	// ErrNoValue is returned by Cached when the probe failed and never succeeded before.
	ErrNoValue = errors.New("probe has no value")
)
