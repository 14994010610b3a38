package matching

import "errors"

// Sentinel kinds for matching-service errors. Per-run failures are returned
// as values wrapping one of these; none of them is ever raised as a panic.
var (
	// ErrConfiguration is fatal: the client cannot be constructed.
	ErrConfiguration = errors.New("matching client configuration invalid")
	// ErrTransport means every attempt failed before a response arrived.
	ErrTransport = errors.New("matching service unreachable")
	// ErrProtocol means a response arrived but was non-2xx or undecodable.
	ErrProtocol = errors.New("matching service protocol error")
	// ErrDependencyUnhealthy means the health gate did not report OK.
	ErrDependencyUnhealthy = errors.New("matching service unhealthy")
	// ErrMetricsRecording tags failures of the optional metrics sink. It is
	// only ever logged.
	ErrMetricsRecording = errors.New("metrics recording failed")
	// ErrUnsupportedMethod is returned by the gateway for verbs other than GET and POST.
	ErrUnsupportedMethod = errors.New("unsupported http method")
)
