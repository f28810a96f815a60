package domain

// Ticket identifies a created record in the backend: SysID is the opaque
// row identifier, Number the human-facing ticket number (e.g. RITM0010042).
type Ticket struct {
	SysID  string
	Number string
}

// Outcome is the per-template verdict of one run.
type Outcome string

const (
	OutcomeCreated                 Outcome = "created"
	OutcomeSkippedNotDue           Outcome = "skipped_not_due"
	OutcomeSkippedDuplicate        Outcome = "skipped_duplicate"
	OutcomeFailedAttachmentMissing Outcome = "failed_attachment_missing"
	OutcomeFailedRemoteError       Outcome = "failed_remote_error"
)

// AttachmentStatus records what happened to one configured attachment.
type AttachmentStatus string

const (
	AttachmentAttached        AttachmentStatus = "attached"
	AttachmentOmittedOptional AttachmentStatus = "omitted_optional"
	AttachmentFailedRequired  AttachmentStatus = "failed_required"
)

// AttachmentResult is the outcome for one attachment, in template order.
type AttachmentResult struct {
	Path   string
	Status AttachmentStatus
	Error  string
}

// RunResult is the outcome of processing one due template.
type RunResult struct {
	Template string
	Outcome  Outcome

	// Ticket is set once remote creation succeeded, including when a
	// later step failed.
	Ticket Ticket

	Attachments []AttachmentResult

	// Error carries the failure detail, prefixed with the failing step.
	Error string
}

// Failed reports whether the template's pipeline failed outright.
func (r RunResult) Failed() bool {
	return r.Outcome == OutcomeFailedAttachmentMissing || r.Outcome == OutcomeFailedRemoteError
}

// AttachmentFailures counts required attachments that did not make it
// onto the ticket.
func (r RunResult) AttachmentFailures() int {
	n := 0
	for _, a := range r.Attachments {
		if a.Status == AttachmentFailedRequired {
			n++
		}
	}
	return n
}
