package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog"
)

// PrometheusSink implements Sink on Prometheus collectors. The process is
// a batch job with nothing to scrape, so collected metrics are delivered
// to a Pushgateway once, at the end of the run, via Push.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	log    zerolog.Logger
	pusher *push.Pusher

	// Loading and selection
	templatesLoaded prometheus.Gauge
	templatesDue    prometheus.Gauge

	// Per-template pipeline
	pipelineOutcomes   *prometheus.CounterVec
	pipelineDuration   prometheus.Histogram
	attachmentOutcomes *prometheus.CounterVec

	// Backend calls
	backendRequests *prometheus.CounterVec
	backendDuration prometheus.Histogram

	// Whole run
	runDuration  prometheus.Gauge
	runFailed    prometheus.Gauge
	lastRunStamp prometheus.Gauge
}

// NewPrometheusSink creates a sink registering its collectors with reg.
// If registration fails it logs a warning and returns a functional sink;
// collectors that failed to register still accept writes, they just never
// appear in the gathered output.
func NewPrometheusSink(reg prometheus.Registerer, log zerolog.Logger) *PrometheusSink {
	s := &PrometheusSink{log: log}

	s.templatesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snscheduler_templates_loaded",
		Help: "Number of templates loaded for this run.",
	})
	s.templatesDue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snscheduler_templates_due",
		Help: "Number of templates due on the run date.",
	})
	s.pipelineOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snscheduler_pipeline_outcomes_total",
		Help: "Per-template pipeline outcomes for this run.",
	}, []string{"outcome"})
	s.pipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snscheduler_pipeline_duration_seconds",
		Help:    "Duration of one template's creation pipeline in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.attachmentOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snscheduler_attachment_outcomes_total",
		Help: "Attachment upload outcomes for this run.",
	}, []string{"status"})
	s.backendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snscheduler_backend_requests_total",
		Help: "ServiceNow API requests by operation and status class.",
	}, []string{"op", "status_class"})
	s.backendDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "snscheduler_backend_request_duration_seconds",
		Help:    "ServiceNow API request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
	s.runDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snscheduler_run_duration_seconds",
		Help: "Wall-clock duration of the whole run in seconds.",
	})
	s.runFailed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snscheduler_run_failed_templates",
		Help: "Templates that ended in a failure outcome this run.",
	})
	s.lastRunStamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "snscheduler_last_run_timestamp_seconds",
		Help: "Unix time of the last completed run.",
	})

	s.register(reg, s.templatesLoaded, "snscheduler_templates_loaded")
	s.register(reg, s.templatesDue, "snscheduler_templates_due")
	s.register(reg, s.pipelineOutcomes, "snscheduler_pipeline_outcomes_total")
	s.register(reg, s.pipelineDuration, "snscheduler_pipeline_duration_seconds")
	s.register(reg, s.attachmentOutcomes, "snscheduler_attachment_outcomes_total")
	s.register(reg, s.backendRequests, "snscheduler_backend_requests_total")
	s.register(reg, s.backendDuration, "snscheduler_backend_request_duration_seconds")
	s.register(reg, s.runDuration, "snscheduler_run_duration_seconds")
	s.register(reg, s.runFailed, "snscheduler_run_failed_templates")
	s.register(reg, s.lastRunStamp, "snscheduler_last_run_timestamp_seconds")

	return s
}

// NewPushSink builds a sink on a private registry aimed at a Pushgateway.
// The job name groups pushes, so schedulers with distinct job names do
// not overwrite each other's series.
func NewPushSink(gatewayURL, job string, log zerolog.Logger) *PrometheusSink {
	registry := prometheus.NewRegistry()
	s := NewPrometheusSink(registry, log)
	s.pusher = push.New(gatewayURL, job).Gatherer(registry)
	return s
}

// Push delivers the collected metrics to the gateway, replacing the
// previous push for the same job. A sink built without a gateway pushes
// nowhere and returns nil.
func (s *PrometheusSink) Push(ctx context.Context) error {
	if s.pusher == nil {
		return nil
	}
	return s.pusher.PushContext(ctx)
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.log.Warn().Err(err).Str("metric", name).Msg("metrics: register failed")
	}
}

func (s *PrometheusSink) TemplatesLoaded(n int) {
	s.templatesLoaded.Set(float64(n))
}

func (s *PrometheusSink) DueSelected(n int) {
	s.templatesDue.Set(float64(n))
}

func (s *PrometheusSink) PipelineCompleted(outcome string, duration time.Duration) {
	s.pipelineOutcomes.WithLabelValues(outcome).Inc()
	s.pipelineDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) AttachmentOutcome(status string) {
	s.attachmentOutcomes.WithLabelValues(status).Inc()
}

func (s *PrometheusSink) BackendRequest(op, statusClass string, duration time.Duration) {
	s.backendRequests.WithLabelValues(op, statusClass).Inc()
	s.backendDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) RunCompleted(duration time.Duration, failed int) {
	s.runDuration.Set(duration.Seconds())
	s.runFailed.Set(float64(failed))
	s.lastRunStamp.SetToCurrentTime()
}
