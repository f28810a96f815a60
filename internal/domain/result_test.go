package domain

import "testing"

func TestOutcome_Values(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeCreated, "created"},
		{OutcomeSkippedNotDue, "skipped_not_due"},
		{OutcomeSkippedDuplicate, "skipped_duplicate"},
		{OutcomeFailedAttachmentMissing, "failed_attachment_missing"},
		{OutcomeFailedRemoteError, "failed_remote_error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if string(tt.outcome) != tt.want {
				t.Errorf("Outcome = %q, want %q", tt.outcome, tt.want)
			}
		})
	}
}

func TestRunResult_Failed(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeCreated, false},
		{OutcomeSkippedNotDue, false},
		{OutcomeSkippedDuplicate, false},
		{OutcomeFailedAttachmentMissing, true},
		{OutcomeFailedRemoteError, true},
	}

	for _, tt := range tests {
		r := RunResult{Outcome: tt.outcome}
		if got := r.Failed(); got != tt.want {
			t.Errorf("Failed() for %q = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestRunResult_AttachmentFailures(t *testing.T) {
	r := RunResult{
		Outcome: OutcomeCreated,
		Attachments: []AttachmentResult{
			{Path: "a.pdf", Status: AttachmentAttached},
			{Path: "b.txt", Status: AttachmentOmittedOptional},
			{Path: "c.csv", Status: AttachmentFailedRequired, Error: "upload failed"},
		},
	}

	if got := r.AttachmentFailures(); got != 1 {
		t.Errorf("AttachmentFailures() = %d, want 1", got)
	}
}
