// Package runner drives one invocation: select the due templates, push
// each through the creation pipeline, and fan results out to the
// configured sinks. One template's failure never stops the others.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/scheduler"
)

// Pipeline processes one due template.
type Pipeline interface {
	Process(ctx context.Context, tmpl domain.Template) domain.RunResult
}

// History is the optional run ledger. With the duplicate guard enabled,
// CreatedOn decides whether a due template already got its ticket today.
type History interface {
	CreatedOn(ctx context.Context, template string, date time.Time) (bool, error)
	Record(ctx context.Context, runID string, date time.Time, res domain.RunResult) error
}

// AnalyticsSink receives one outcome event per processed template.
type AnalyticsSink interface {
	Record(ctx context.Context, template string, outcome domain.Outcome, date time.Time) error
}

// MetricsSink defines the interface for recording run metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	DueSelected(n int)
	RunCompleted(duration time.Duration, failed int)
}

type Runner struct {
	pipeline  Pipeline
	history   History       // optional, nil = disabled
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	log       zerolog.Logger

	workers int
	guard   bool
}

func New(pipeline Pipeline, log zerolog.Logger) *Runner {
	return &Runner{
		pipeline: pipeline,
		log:      log,
		workers:  1,
	}
}

// WithHistory attaches the run ledger.
func (r *Runner) WithHistory(h History) *Runner {
	r.history = h
	return r
}

// WithDuplicateGuard makes a second invocation on the same date skip
// templates that already produced a ticket. Needs history to work.
func (r *Runner) WithDuplicateGuard() *Runner {
	r.guard = true
	return r
}

// WithAnalytics attaches an analytics sink to the runner.
func (r *Runner) WithAnalytics(sink AnalyticsSink) *Runner {
	r.analytics = sink
	return r
}

// WithMetrics attaches a metrics sink to the runner.
func (r *Runner) WithMetrics(sink MetricsSink) *Runner {
	r.metrics = sink
	return r
}

// WithWorkers processes due templates on n goroutines. Templates share no
// mutable state, so this only changes latency, not semantics; results
// keep selection order either way.
func (r *Runner) WithWorkers(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.workers = n
	return r
}

// Run evaluates every template against today and pipelines the due ones.
// It returns exactly one result per due template, in selection order.
// Templates that are not due produce no result at all. runID tags the
// ledger rows and log lines of this invocation.
func (r *Runner) Run(ctx context.Context, runID string, templates []domain.Template, today time.Time) []domain.RunResult {
	start := time.Now()
	log := r.log.With().Str("run_id", runID).Logger()

	due := scheduler.SelectDue(templates, today)
	if r.metrics != nil {
		r.metrics.DueSelected(len(due))
	}
	log.Info().
		Str("date", today.Format("2006-01-02")).
		Int("templates", len(templates)).
		Int("due", len(due)).
		Msg("runner: due templates selected")
	if len(due) == 0 {
		log.Info().Msg("runner: no templates due")
	}

	results := make([]domain.RunResult, len(due))
	if r.workers <= 1 || len(due) <= 1 {
		for i, tmpl := range due {
			results[i] = r.processOne(ctx, log, runID, tmpl, today)
		}
	} else {
		r.processParallel(ctx, log, runID, due, today, results)
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	if r.metrics != nil {
		r.metrics.RunCompleted(time.Since(start), failed)
	}
	log.Info().
		Int("due", len(due)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("runner: run complete")
	return results
}

func (r *Runner) processOne(ctx context.Context, log zerolog.Logger, runID string, tmpl domain.Template, today time.Time) domain.RunResult {
	result := r.executeGuarded(ctx, log, tmpl, today)
	r.record(ctx, log, runID, today, result)
	return result
}

// executeGuarded runs the duplicate check and the pipeline for one
// template, converting a panic into a failure result so the rest of the
// run is untouched.
func (r *Runner) executeGuarded(ctx context.Context, log zerolog.Logger, tmpl domain.Template, today time.Time) (result domain.RunResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("template", tmpl.Name).
				Interface("panic", rec).
				Msg("runner: pipeline panicked")
			result = domain.RunResult{
				Template: tmpl.Name,
				Outcome:  domain.OutcomeFailedRemoteError,
				Error:    fmt.Sprintf("panic: %v", rec),
			}
		}
	}()

	if r.guard && r.history != nil {
		created, err := r.history.CreatedOn(ctx, tmpl.Name, today)
		if err != nil {
			// The guard is a convenience; a broken ledger must not block
			// scheduled tickets.
			log.Warn().Err(err).Str("template", tmpl.Name).Msg("runner: duplicate check failed, proceeding")
		} else if created {
			log.Info().Str("template", tmpl.Name).Msg("runner: ticket already created today, skipping")
			return domain.RunResult{Template: tmpl.Name, Outcome: domain.OutcomeSkippedDuplicate}
		}
	}

	return r.pipeline.Process(ctx, tmpl)
}

func (r *Runner) processParallel(ctx context.Context, log zerolog.Logger, runID string, due []domain.Template, today time.Time, results []domain.RunResult) {
	type task struct {
		idx  int
		tmpl domain.Template
	}

	workers := r.workers
	if workers > len(due) {
		workers = len(due)
	}

	tasks := make(chan task)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for t := range tasks {
				// Each index is written by exactly one goroutine.
				results[t.idx] = r.processOne(ctx, log, runID, t.tmpl, today)
			}
		}()
	}

	for i, tmpl := range due {
		tasks <- task{idx: i, tmpl: tmpl}
	}
	close(tasks)
	wg.Wait()
}

// record fans the result out to history and analytics. Both are best
// effort: failures are logged and the run carries on.
func (r *Runner) record(ctx context.Context, log zerolog.Logger, runID string, today time.Time, res domain.RunResult) {
	if r.history != nil {
		if err := r.history.Record(ctx, runID, today, res); err != nil {
			log.Warn().Err(err).Str("template", res.Template).Msg("runner: history write failed")
		}
	}
	if r.analytics != nil {
		if err := r.analytics.Record(ctx, res.Template, res.Outcome, today); err != nil {
			log.Warn().Err(err).Str("template", res.Template).Msg("runner: analytics write failed")
		}
	}
}
