package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// stubText fills the ticket at creation time. Creation only reserves the
// record; the real fields land in the follow-up update.
const stubText = "Scheduled ticket"

// Backend is the slice of the ticketing API the pipeline drives.
type Backend interface {
	CreateTicket(ctx context.Context, group, shortDescription, description string) (domain.Ticket, error)
	ResolveGroup(ctx context.Context, name string) (string, error)
	UpdateTicket(ctx context.Context, sysID string, fields map[string]string) error
	AttachFile(ctx context.Context, sysID, path string) error
}

// Creator is an alternate creation capability. Templates that ask for it
// fall back to the Backend when none is configured.
type Creator interface {
	CreateTicket(ctx context.Context, group, shortDescription, description string) (domain.Ticket, error)
}

// MetricsSink defines the interface for recording pipeline metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	PipelineCompleted(outcome string, duration time.Duration)
	AttachmentOutcome(status string)
}

// Pipeline creates one ticket per due template: attachment pre-check,
// remote creation, field application, attachment upload. No retries; a
// failed step ends the template with a failure outcome and the next
// template is someone else's problem.
type Pipeline struct {
	backend     Backend
	integration Creator     // optional, nil = primary API only
	metrics     MetricsSink // optional, nil = disabled
	log         zerolog.Logger
}

func New(backend Backend, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		backend: backend,
		log:     log,
	}
}

// WithIntegration attaches the alternate creation client.
func (p *Pipeline) WithIntegration(c Creator) *Pipeline {
	p.integration = c
	return p
}

// WithMetrics attaches a metrics sink to the pipeline.
func (p *Pipeline) WithMetrics(sink MetricsSink) *Pipeline {
	p.metrics = sink
	return p
}

// Process drives the creation workflow for one due template and reports
// what happened. It never panics on malformed input; backend errors are
// captured in the result, not returned.
func (p *Pipeline) Process(ctx context.Context, tmpl domain.Template) domain.RunResult {
	start := time.Now()
	result := p.process(ctx, tmpl)

	if p.metrics != nil {
		p.metrics.PipelineCompleted(string(result.Outcome), time.Since(start))
		for _, att := range result.Attachments {
			p.metrics.AttachmentOutcome(string(att.Status))
		}
	}
	return result
}

func (p *Pipeline) process(ctx context.Context, tmpl domain.Template) domain.RunResult {
	result := domain.RunResult{Template: tmpl.Name, Outcome: domain.OutcomeCreated}

	// Required attachments are verified before anything is created
	// remotely. A half-built ticket with a missing mandatory file cannot
	// be rolled back, so nothing may be mutated until the check passes.
	if missing := missingRequired(tmpl.Attachments); len(missing) > 0 {
		p.log.Error().
			Str("template", tmpl.Name).
			Strs("paths", missing).
			Msg("pipeline: required attachments missing")

		result.Outcome = domain.OutcomeFailedAttachmentMissing
		result.Error = "attachment pre-check: missing " + strings.Join(missing, ", ")
		for _, path := range missing {
			result.Attachments = append(result.Attachments, domain.AttachmentResult{
				Path:   path,
				Status: domain.AttachmentFailedRequired,
				Error:  "file not accessible",
			})
		}
		return result
	}

	ticket, err := p.create(ctx, tmpl)
	if err != nil {
		p.log.Error().Err(err).Str("template", tmpl.Name).Msg("pipeline: creation failed")
		result.Outcome = domain.OutcomeFailedRemoteError
		result.Error = "create: " + err.Error()
		return result
	}
	result.Ticket = ticket
	p.log.Info().
		Str("template", tmpl.Name).
		Str("number", ticket.Number).
		Str("sys_id", ticket.SysID).
		Msg("pipeline: ticket created")

	// The ticket exists from here on. Later failures are reported with
	// its identity, never rolled back.
	if err := p.applyFields(ctx, tmpl, ticket.SysID); err != nil {
		p.log.Error().Err(err).
			Str("template", tmpl.Name).
			Str("number", ticket.Number).
			Msg("pipeline: field application failed")
		result.Outcome = domain.OutcomeFailedRemoteError
		result.Error = err.Error()
		return result
	}

	result.Attachments = p.uploadAttachments(ctx, tmpl, ticket.SysID)
	return result
}

// create picks the creation channel. A template asking for the
// integration endpoint while none is configured falls back to the
// primary API rather than losing its scheduled ticket.
func (p *Pipeline) create(ctx context.Context, tmpl domain.Template) (domain.Ticket, error) {
	if tmpl.UseIntegration {
		if p.integration != nil {
			return p.integration.CreateTicket(ctx, tmpl.AssignmentGroup, stubText, stubText)
		}
		p.log.Warn().
			Str("template", tmpl.Name).
			Msg("pipeline: integration creation requested but not configured, using primary API")
	}
	return p.backend.CreateTicket(ctx, tmpl.AssignmentGroup, stubText, stubText)
}

// applyFields resolves the assignment group to its backend identifier and
// writes the real ticket content.
func (p *Pipeline) applyFields(ctx context.Context, tmpl domain.Template, sysID string) error {
	groupID, err := p.backend.ResolveGroup(ctx, tmpl.AssignmentGroup)
	if err != nil {
		return fmt.Errorf("resolve group: %w", err)
	}

	fields := map[string]string{
		"short_description": tmpl.ShortDescription,
		"description":       tmpl.Description,
		"assignment_group":  groupID,
	}
	if err := p.backend.UpdateTicket(ctx, sysID, fields); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

func (p *Pipeline) uploadAttachments(ctx context.Context, tmpl domain.Template, sysID string) []domain.AttachmentResult {
	if len(tmpl.Attachments) == 0 {
		return nil
	}

	results := make([]domain.AttachmentResult, 0, len(tmpl.Attachments))
	for _, att := range tmpl.Attachments {
		results = append(results, p.uploadOne(ctx, tmpl.Name, sysID, att))
	}
	return results
}

// uploadOne attaches a single file. Optional files degrade to omission
// whether missing or failing upload; required files passed the pre-check,
// so a failure here (including the file vanishing since) is transport
// class and marks the attachment failed without undoing the ticket.
func (p *Pipeline) uploadOne(ctx context.Context, template, sysID string, att domain.Attachment) domain.AttachmentResult {
	if !att.Required {
		if _, err := os.Stat(att.Path); err != nil {
			p.log.Warn().
				Str("template", template).
				Str("path", att.Path).
				Msg("pipeline: optional attachment missing, omitted")
			return domain.AttachmentResult{Path: att.Path, Status: domain.AttachmentOmittedOptional}
		}
	}

	if err := p.backend.AttachFile(ctx, sysID, att.Path); err != nil {
		if att.Required {
			p.log.Error().Err(err).
				Str("template", template).
				Str("path", att.Path).
				Msg("pipeline: required attachment upload failed")
			return domain.AttachmentResult{
				Path:   att.Path,
				Status: domain.AttachmentFailedRequired,
				Error:  err.Error(),
			}
		}
		p.log.Warn().Err(err).
			Str("template", template).
			Str("path", att.Path).
			Msg("pipeline: optional attachment upload failed, omitted")
		return domain.AttachmentResult{
			Path:   att.Path,
			Status: domain.AttachmentOmittedOptional,
			Error:  err.Error(),
		}
	}

	p.log.Info().
		Str("template", template).
		Str("path", att.Path).
		Msg("pipeline: attachment uploaded")
	return domain.AttachmentResult{Path: att.Path, Status: domain.AttachmentAttached}
}

// missingRequired returns the required attachment paths that are not
// currently readable files.
func missingRequired(attachments []domain.Attachment) []string {
	var missing []string
	for _, att := range attachments {
		if !att.Required {
			continue
		}
		info, err := os.Stat(att.Path)
		if err != nil || info.IsDir() {
			missing = append(missing, att.Path)
		}
	}
	return missing
}
