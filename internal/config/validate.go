package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for structural errors. Credentials
// are checked separately by ValidateCredentials so read-only subcommands
// (validate, due, config) work without them.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.ServiceNow.InstanceURL == "" {
		errs = append(errs, ValidationError{
			Field:   "servicenow.instance_url",
			Message: "required",
		})
	} else if !isValidURL(cfg.ServiceNow.InstanceURL) {
		errs = append(errs, ValidationError{
			Field:   "servicenow.instance_url",
			Message: fmt.Sprintf("must be an absolute http(s) URL, got %q", cfg.ServiceNow.InstanceURL),
		})
	}

	if cfg.ServiceNow.TimeoutStr != "" {
		d, err := time.ParseDuration(cfg.ServiceNow.TimeoutStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "servicenow.timeout",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "servicenow.timeout",
				Message: "must be positive",
			})
		}
	}

	if cfg.ServiceNow.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "servicenow.rate_limit",
			Message: "must be >= 0 (0 disables the limiter)",
		})
	}
	if cfg.ServiceNow.BreakerThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "servicenow.breaker_threshold",
			Message: "must be >= 0 (0 disables the breaker)",
		})
	}

	if cfg.Templates.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "templates.path",
			Message: "required",
		})
	}

	if lvl := cfg.Log.Level; lvl != "" {
		switch strings.ToLower(lvl) {
		case "trace", "debug", "info", "warn", "warning", "error":
		default:
			errs = append(errs, ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("unknown level %q", lvl),
			})
		}
	}

	if cfg.History.Enabled && cfg.History.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "history.path",
			Message: "required when history is enabled",
		})
	}

	if cfg.Analytics.RetentionStr != "" {
		d, err := time.ParseDuration(cfg.Analytics.RetentionStr)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "analytics.retention",
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   "analytics.retention",
				Message: "must be positive",
			})
		}
	}

	if cfg.Run.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "run.workers",
			Message: "must be >= 1",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateCredentials checks the environment-supplied ServiceNow
// credentials a live run needs.
func ValidateCredentials(cfg Config) error {
	var errs ValidationErrors

	if cfg.ServiceNow.Username == "" {
		errs = append(errs, ValidationError{
			Field:   "SN_API_USER",
			Message: "required",
		})
	}
	if cfg.ServiceNow.Password == "" {
		errs = append(errs, ValidationError{
			Field:   "SN_API_PASSWORD",
			Message: "required",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// isValidURL accepts absolute http(s) URLs with a host.
func isValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
