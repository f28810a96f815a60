package metrics

import "time"

// Sink records run telemetry.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Loading and selection
	TemplatesLoaded(n int)
	DueSelected(n int)

	// Per-template pipeline
	PipelineCompleted(outcome string, duration time.Duration)
	AttachmentOutcome(status string)

	// Backend calls
	BackendRequest(op, statusClass string, duration time.Duration)

	// Whole run
	RunCompleted(duration time.Duration, failed int)
}

// StatusClass constants for the BackendRequest metric.
const (
	StatusClass2xx   = "2xx"
	StatusClass4xx   = "4xx"
	StatusClass5xx   = "5xx"
	StatusClassError = "error"
)

// ClassifyStatus maps an HTTP status code to a coarse class label.
// Callers that never received a status line (transport failure, timeout)
// record StatusClassError directly.
func ClassifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassError
	}
}
