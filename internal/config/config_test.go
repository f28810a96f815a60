package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

const minimalConfig = `
servicenow:
  instance_url: https://example.service-now.com
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceNow.Timeout != 30*time.Second {
		t.Errorf("Timeout: expected 30s, got %v", cfg.ServiceNow.Timeout)
	}
	if cfg.Templates.Path != "templates/*.yaml" {
		t.Errorf("Templates.Path: expected templates/*.yaml, got %q", cfg.Templates.Path)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level: expected info, got %q", cfg.Log.Level)
	}
	if !cfg.Log.Console {
		t.Error("Log.Console: expected true by default")
	}
	if cfg.History.Path != "snscheduler.db" {
		t.Errorf("History.Path: expected snscheduler.db, got %q", cfg.History.Path)
	}
	if cfg.Metrics.Job != "snscheduler" {
		t.Errorf("Metrics.Job: expected snscheduler, got %q", cfg.Metrics.Job)
	}
	if cfg.Analytics.Retention != 720*time.Hour {
		t.Errorf("Analytics.Retention: expected 720h, got %v", cfg.Analytics.Retention)
	}
	if cfg.Run.Workers != 1 {
		t.Errorf("Run.Workers: expected 1, got %d", cfg.Run.Workers)
	}
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
servicenow:
  instance_url: https://dev.service-now.com
  integration_path: api/x_acme/create_ritm
  timeout: 10s
  rate_limit: 5
  breaker_threshold: 3
templates:
  path: tickets/*.yaml
log:
  level: debug
  dir: logs
  console: false
history:
  enabled: true
  path: runs.db
  run_once_per_day: true
metrics:
  enabled: true
  pushgateway_url: http://pushgw:9091
  job: snsched-prod
analytics:
  redis_addr: localhost:6379
  redis_db: 2
  retention: 48h
run:
  workers: 4
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceNow.IntegrationPath != "api/x_acme/create_ritm" {
		t.Errorf("IntegrationPath = %q", cfg.ServiceNow.IntegrationPath)
	}
	if cfg.ServiceNow.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.ServiceNow.Timeout)
	}
	if cfg.ServiceNow.RateLimit != 5 || cfg.ServiceNow.BreakerThreshold != 3 {
		t.Errorf("RateLimit/BreakerThreshold = %d/%d, want 5/3",
			cfg.ServiceNow.RateLimit, cfg.ServiceNow.BreakerThreshold)
	}
	if cfg.Templates.Path != "tickets/*.yaml" {
		t.Errorf("Templates.Path = %q", cfg.Templates.Path)
	}
	if cfg.Log.Console {
		t.Error("Log.Console: expected false when set explicitly")
	}
	if !cfg.History.Enabled || !cfg.History.RunOncePerDay || cfg.History.Path != "runs.db" {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Metrics.PushgatewayURL != "http://pushgw:9091" || cfg.Metrics.Job != "snsched-prod" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Analytics.RedisDB != 2 || cfg.Analytics.Retention != 48*time.Hour {
		t.Errorf("Analytics = %+v", cfg.Analytics)
	}
	if cfg.Run.Workers != 4 {
		t.Errorf("Run.Workers = %d, want 4", cfg.Run.Workers)
	}
}

func TestLoad_CredentialsFromEnv(t *testing.T) {
	t.Setenv("SN_API_USER", "svc.scheduler")
	t.Setenv("SN_API_PASSWORD", "hunter2")
	t.Setenv("SN_INTEGRATION_USER", "")
	t.Setenv("SN_INTEGRATION_PASSWORD", "")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceNow.Username != "svc.scheduler" || cfg.ServiceNow.Password != "hunter2" {
		t.Errorf("primary credentials not picked up: %q/%q",
			cfg.ServiceNow.Username, cfg.ServiceNow.Password)
	}
	// Integration credentials fall back to the primary pair when unset.
	if cfg.ServiceNow.IntegrationUser != "svc.scheduler" || cfg.ServiceNow.IntegrationPassword != "hunter2" {
		t.Errorf("integration credentials did not fall back: %q/%q",
			cfg.ServiceNow.IntegrationUser, cfg.ServiceNow.IntegrationPassword)
	}
}

func TestLoad_IntegrationCredentialsOverride(t *testing.T) {
	t.Setenv("SN_API_USER", "svc.scheduler")
	t.Setenv("SN_API_PASSWORD", "hunter2")
	t.Setenv("SN_INTEGRATION_USER", "svc.integration")
	t.Setenv("SN_INTEGRATION_PASSWORD", "other")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServiceNow.IntegrationUser != "svc.integration" || cfg.ServiceNow.IntegrationPassword != "other" {
		t.Errorf("integration credentials overridden incorrectly: %q/%q",
			cfg.ServiceNow.IntegrationUser, cfg.ServiceNow.IntegrationPassword)
	}
}

// TestLoad_UnknownKeyRejected verifies strict decoding: a typoed key must
// fail loudly instead of silently configuring nothing.
func TestLoad_UnknownKeyRejected(t *testing.T) {
	_, err := Load(writeConfig(t, `
servicenow:
  instance_url: https://example.service-now.com
  integation_path: oops
`))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestMaskedJSON_HidesSecrets(t *testing.T) {
	t.Setenv("SN_API_USER", "svc.scheduler")
	t.Setenv("SN_API_PASSWORD", "superSecret99")
	t.Setenv("SN_INTEGRATION_USER", "")
	t.Setenv("SN_INTEGRATION_PASSWORD", "")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	out, err := cfg.MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON failed: %v", err)
	}

	s := string(out)
	if strings.Contains(s, "superSecret99") {
		t.Error("masked output contains the raw password")
	}
	if !strings.Contains(s, "svc.scheduler") {
		t.Error("masked output should keep the username visible")
	}
	if !strings.Contains(s, `"password": "***"`) {
		t.Errorf("expected masked password marker, got:\n%s", s)
	}
}
