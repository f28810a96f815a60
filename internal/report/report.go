// Package report renders run results for operators and machines: per
// result log lines, a closing summary, and the JSON document behind the
// run subcommand's -json flag.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// Document is the machine-readable report for one invocation.
type Document struct {
	RunID   string   `json:"run_id"`
	Date    string   `json:"date"`
	Results []Result `json:"results"`
	Totals  Totals   `json:"totals"`
}

type Result struct {
	Template     string       `json:"template"`
	Outcome      string       `json:"outcome"`
	TicketSysID  string       `json:"ticket_sys_id,omitempty"`
	TicketNumber string       `json:"ticket_number,omitempty"`
	Error        string       `json:"error,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Totals struct {
	Due                int `json:"due"`
	Created            int `json:"created"`
	SkippedDuplicate   int `json:"skipped_duplicate"`
	Failed             int `json:"failed"`
	AttachmentFailures int `json:"attachment_failures"`
}

// Build assembles the report document for one run.
func Build(runID string, date time.Time, results []domain.RunResult) Document {
	doc := Document{
		RunID:   runID,
		Date:    date.Format("2006-01-02"),
		Results: make([]Result, 0, len(results)),
		Totals:  Tally(results),
	}

	for _, res := range results {
		r := Result{
			Template:     res.Template,
			Outcome:      string(res.Outcome),
			TicketSysID:  res.Ticket.SysID,
			TicketNumber: res.Ticket.Number,
			Error:        res.Error,
		}
		for _, att := range res.Attachments {
			r.Attachments = append(r.Attachments, Attachment{
				Path:   att.Path,
				Status: string(att.Status),
				Error:  att.Error,
			})
		}
		doc.Results = append(doc.Results, r)
	}
	return doc
}

// Tally counts results by outcome.
func Tally(results []domain.RunResult) Totals {
	t := Totals{Due: len(results)}
	for _, res := range results {
		switch res.Outcome {
		case domain.OutcomeCreated:
			t.Created++
		case domain.OutcomeSkippedDuplicate:
			t.SkippedDuplicate++
		}
		if res.Failed() {
			t.Failed++
		}
		t.AttachmentFailures += res.AttachmentFailures()
	}
	return t
}

// WriteJSON renders the document, indented for humans piping to a file.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Log writes one line per result and a closing summary.
func Log(log zerolog.Logger, results []domain.RunResult) {
	for _, res := range results {
		ev := log.Info()
		if res.Failed() {
			ev = log.Error()
		}
		ev = ev.Str("template", res.Template).Str("outcome", string(res.Outcome))
		if res.Ticket.Number != "" {
			ev = ev.Str("ticket", res.Ticket.Number)
		}
		if res.Error != "" {
			ev = ev.Str("error", res.Error)
		}
		if n := res.AttachmentFailures(); n > 0 {
			ev = ev.Int("failed_attachments", n)
		}
		ev.Msg("run result")
	}

	t := Tally(results)
	log.Info().
		Int("due", t.Due).
		Int("created", t.Created).
		Int("skipped_duplicate", t.SkippedDuplicate).
		Int("failed", t.Failed).
		Int("attachment_failures", t.AttachmentFailures).
		Msg("run summary")
}
