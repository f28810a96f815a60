package template

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// LoadError describes one template file that could not be used.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// record is the raw YAML shape of one template file.
type record struct {
	Ticket struct {
		AssignmentGroup   string `yaml:"assignment_group"`
		ShortDescription  string `yaml:"short_description"`
		Description       string `yaml:"description"`
		IntegrationHelper bool   `yaml:"integration_helper"`
		Schedule          struct {
			Frequency  string `yaml:"frequency"`
			DayOfWeek  *int   `yaml:"day_of_week"`
			DayOfMonth int    `yaml:"day_of_month"`
			Months     []int  `yaml:"months"`
		} `yaml:"schedule"`
		Attachments []struct {
			Path     string `yaml:"path"`
			Required bool   `yaml:"required"`
		} `yaml:"attachments"`
	} `yaml:"ticket"`
}

// Load reads every template file matching pattern, in sorted order. Files
// that fail to read, decode, or validate are excluded and reported as
// LoadErrors; one bad file never aborts the load. The error return covers
// pattern problems only.
//
// Attachment paths are not checked for existence here. Accessibility is
// decided per run inside the pipeline, immediately before any remote call.
func Load(pattern string) ([]domain.Template, []LoadError, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("bad template pattern %q: %w", pattern, err)
	}

	var (
		templates []domain.Template
		failed    []LoadError
	)
	for _, path := range paths {
		tmpl, err := loadFile(path)
		if err != nil {
			failed = append(failed, LoadError{Path: path, Err: err})
			continue
		}
		templates = append(templates, tmpl)
	}
	return templates, failed, nil
}

func loadFile(path string) (domain.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Template{}, err
	}

	var raw record
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Template{}, errors.New("empty template file")
		}
		return domain.Template{}, fmt.Errorf("parse: %w", err)
	}

	tmpl := domain.Template{
		Name:             Name(path),
		AssignmentGroup:  raw.Ticket.AssignmentGroup,
		ShortDescription: raw.Ticket.ShortDescription,
		Description:      raw.Ticket.Description,
		UseIntegration:   raw.Ticket.IntegrationHelper,
		Schedule: domain.Rule{
			Frequency:  domain.Frequency(strings.ToLower(raw.Ticket.Schedule.Frequency)),
			DayOfWeek:  -1, // absent unless the file says otherwise
			DayOfMonth: raw.Ticket.Schedule.DayOfMonth,
			Months:     raw.Ticket.Schedule.Months,
		},
	}
	if raw.Ticket.Schedule.DayOfWeek != nil {
		tmpl.Schedule.DayOfWeek = *raw.Ticket.Schedule.DayOfWeek
	}
	for _, a := range raw.Ticket.Attachments {
		tmpl.Attachments = append(tmpl.Attachments, domain.Attachment{Path: a.Path, Required: a.Required})
	}

	if err := tmpl.Validate(); err != nil {
		return domain.Template{}, err
	}
	return tmpl, nil
}

// Name derives the template name from its source filename.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
