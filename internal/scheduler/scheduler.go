package scheduler

import (
	"time"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// Decision pairs a template with its due verdict for one date.
type Decision struct {
	Template domain.Template
	Due      bool
}

// SelectDue filters templates down to those whose schedule fires on the
// given date, preserving input order. Pure function, no I/O; "today" is
// injected by the caller.
func SelectDue(templates []domain.Template, today time.Time) []domain.Template {
	due := make([]domain.Template, 0, len(templates))
	for _, tmpl := range templates {
		if tmpl.Schedule.IsDue(today) {
			due = append(due, tmpl)
		}
	}
	return due
}

// Decisions evaluates every template against the given date. Dry runs and
// the due subcommand use this to show not-due templates as well, which
// SelectDue deliberately drops.
func Decisions(templates []domain.Template, today time.Time) []Decision {
	out := make([]Decision, 0, len(templates))
	for _, tmpl := range templates {
		out = append(out, Decision{Template: tmpl, Due: tmpl.Schedule.IsDue(today)})
	}
	return out
}
