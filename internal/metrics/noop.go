package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TemplatesLoaded(count int)                                     {}
func (n *NoopSink) DueSelected(count int)                                         {}
func (n *NoopSink) PipelineCompleted(outcome string, duration time.Duration)      {}
func (n *NoopSink) AttachmentOutcome(status string)                               {}
func (n *NoopSink) BackendRequest(op, statusClass string, duration time.Duration) {}
func (n *NoopSink) RunCompleted(duration time.Duration, failed int)               {}
