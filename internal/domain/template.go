package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Attachment describes one file to attach to a created ticket. Required
// controls the failure semantics: a missing required file aborts the
// ticket before any remote call, a missing optional file is omitted.
type Attachment struct {
	Path     string
	Required bool
}

// Template is one recurring ticket definition. Name is derived from the
// source filename and used for logging and correlation only.
type Template struct {
	Name string

	AssignmentGroup  string
	ShortDescription string
	Description      string

	// UseIntegration routes creation through the integration endpoint
	// when one is configured; otherwise creation falls back to the
	// primary API.
	UseIntegration bool

	Schedule    Rule
	Attachments []Attachment
}

// Validate aggregates every structural problem with the template into a
// single error, so a bad file is reported once with all its defects.
func (t Template) Validate() error {
	var problems []string
	if strings.TrimSpace(t.AssignmentGroup) == "" {
		problems = append(problems, "assignment_group is required")
	}
	if strings.TrimSpace(t.ShortDescription) == "" {
		problems = append(problems, "short_description is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		problems = append(problems, "description is required")
	}
	if err := t.Schedule.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	for i, a := range t.Attachments {
		if strings.TrimSpace(a.Path) == "" {
			problems = append(problems, fmt.Sprintf("attachments[%d]: path is required", i))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
