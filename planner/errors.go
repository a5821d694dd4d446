package planner

import "errors"

var (
	// ErrNotReady is returned by the Gateway before an AppContext is installed.
	ErrNotReady = errors.New("planner not ready")
	// ErrInvalidRequest is wrapped by every TripRequest validation failure.
	ErrInvalidRequest = errors.New("invalid trip request")
)
