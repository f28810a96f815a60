package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config holds all configuration for the snscheduler tool. Topology comes
// from a YAML file; ServiceNow credentials come from environment
// variables (see printUsage() for the full list).
type Config struct {
	ServiceNow ServiceNowConfig
	Templates  TemplatesConfig
	Log        LogConfig
	History    HistoryConfig
	Metrics    MetricsConfig
	Analytics  AnalyticsConfig
	Run        RunConfig
}

type ServiceNowConfig struct {
	InstanceURL string

	// IntegrationPath, when set, enables the integration creation
	// endpoint at {instance_url}/{integration_path}.
	IntegrationPath string

	Username string // SN_API_USER
	Password string // SN_API_PASSWORD

	// Integration credentials fall back to the primary pair when unset.
	IntegrationUser     string // SN_INTEGRATION_USER
	IntegrationPassword string // SN_INTEGRATION_PASSWORD

	Timeout    time.Duration
	TimeoutStr string

	// RateLimit caps requests per second toward the instance; 0 disables
	// the limiter.
	RateLimit int

	// BreakerThreshold: consecutive transport failures before the client
	// fails fast; 0 disables the breaker.
	BreakerThreshold int
}

type TemplatesConfig struct {
	Path string // glob pattern, e.g. templates/*.yaml
}

type LogConfig struct {
	Level   string
	Dir     string
	Console bool
}

type HistoryConfig struct {
	Enabled bool
	Path    string

	// RunOncePerDay skips templates that already have a created ticket
	// recorded for the run date.
	RunOncePerDay bool
}

type MetricsConfig struct {
	Enabled        bool
	PushgatewayURL string
	Job            string
}

type AnalyticsConfig struct {
	RedisAddr    string
	RedisDB      int
	Retention    time.Duration
	RetentionStr string
}

type RunConfig struct {
	Workers int
}

// fileConfig is the raw YAML shape; Load translates it into Config.
type fileConfig struct {
	ServiceNow struct {
		InstanceURL      string `yaml:"instance_url"`
		IntegrationPath  string `yaml:"integration_path"`
		Timeout          string `yaml:"timeout"`
		RateLimit        int    `yaml:"rate_limit"`
		BreakerThreshold int    `yaml:"breaker_threshold"`
	} `yaml:"servicenow"`
	Templates struct {
		Path string `yaml:"path"`
	} `yaml:"templates"`
	Log struct {
		Level   string `yaml:"level"`
		Dir     string `yaml:"dir"`
		Console *bool  `yaml:"console"`
	} `yaml:"log"`
	History struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RunOncePerDay bool   `yaml:"run_once_per_day"`
	} `yaml:"history"`
	Metrics struct {
		Enabled        bool   `yaml:"enabled"`
		PushgatewayURL string `yaml:"pushgateway_url"`
		Job            string `yaml:"job"`
	} `yaml:"metrics"`
	Analytics struct {
		RedisAddr string `yaml:"redis_addr"`
		RedisDB   int    `yaml:"redis_db"`
		Retention string `yaml:"retention"`
	} `yaml:"analytics"`
	Run struct {
		Workers int `yaml:"workers"`
	} `yaml:"run"`
}

// Load reads the YAML config file, applies defaults, and attaches the
// environment-supplied credentials. Unknown YAML keys are rejected so
// typos surface instead of silently configuring nothing.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if len(data) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg := Config{
		ServiceNow: ServiceNowConfig{
			InstanceURL:      raw.ServiceNow.InstanceURL,
			IntegrationPath:  raw.ServiceNow.IntegrationPath,
			TimeoutStr:       raw.ServiceNow.Timeout,
			RateLimit:        raw.ServiceNow.RateLimit,
			BreakerThreshold: raw.ServiceNow.BreakerThreshold,
		},
		Templates: TemplatesConfig{Path: raw.Templates.Path},
		Log: LogConfig{
			Level:   raw.Log.Level,
			Dir:     raw.Log.Dir,
			Console: raw.Log.Console == nil || *raw.Log.Console,
		},
		History: HistoryConfig{
			Enabled:       raw.History.Enabled,
			Path:          raw.History.Path,
			RunOncePerDay: raw.History.RunOncePerDay,
		},
		Metrics: MetricsConfig{
			Enabled:        raw.Metrics.Enabled,
			PushgatewayURL: raw.Metrics.PushgatewayURL,
			Job:            raw.Metrics.Job,
		},
		Analytics: AnalyticsConfig{
			RedisAddr:    raw.Analytics.RedisAddr,
			RedisDB:      raw.Analytics.RedisDB,
			RetentionStr: raw.Analytics.Retention,
		},
		Run: RunConfig{Workers: raw.Run.Workers},
	}

	cfg.ServiceNow.Username = os.Getenv("SN_API_USER")
	cfg.ServiceNow.Password = os.Getenv("SN_API_PASSWORD")
	cfg.ServiceNow.IntegrationUser = os.Getenv("SN_INTEGRATION_USER")
	cfg.ServiceNow.IntegrationPassword = os.Getenv("SN_INTEGRATION_PASSWORD")
	if cfg.ServiceNow.IntegrationUser == "" {
		cfg.ServiceNow.IntegrationUser = cfg.ServiceNow.Username
	}
	if cfg.ServiceNow.IntegrationPassword == "" {
		cfg.ServiceNow.IntegrationPassword = cfg.ServiceNow.Password
	}

	if cfg.ServiceNow.TimeoutStr == "" {
		cfg.ServiceNow.TimeoutStr = "30s"
	}
	if cfg.Templates.Path == "" {
		cfg.Templates.Path = "templates/*.yaml"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "snscheduler.db"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "snscheduler"
	}
	if cfg.Analytics.RetentionStr == "" {
		cfg.Analytics.RetentionStr = "720h"
	}
	if cfg.Run.Workers == 0 {
		cfg.Run.Workers = 1
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.ServiceNow.TimeoutStr); err == nil {
		cfg.ServiceNow.Timeout = d
	}
	if d, err := time.ParseDuration(cfg.Analytics.RetentionStr); err == nil {
		cfg.Analytics.Retention = d
	}

	return cfg, nil
}

// MaskedJSON returns the effective configuration as JSON with secrets
// masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		ServiceNow struct {
			InstanceURL         string `json:"instance_url"`
			IntegrationPath     string `json:"integration_path,omitempty"`
			Username            string `json:"username"`
			Password            string `json:"password"`
			IntegrationUser     string `json:"integration_user,omitempty"`
			IntegrationPassword string `json:"integration_password,omitempty"`
			Timeout             string `json:"timeout"`
			RateLimit           int    `json:"rate_limit"`
			BreakerThreshold    int    `json:"breaker_threshold"`
		} `json:"servicenow"`
		Templates struct {
			Path string `json:"path"`
		} `json:"templates"`
		Log struct {
			Level   string `json:"level"`
			Dir     string `json:"dir,omitempty"`
			Console bool   `json:"console"`
		} `json:"log"`
		History struct {
			Enabled       bool   `json:"enabled"`
			Path          string `json:"path"`
			RunOncePerDay bool   `json:"run_once_per_day"`
		} `json:"history"`
		Metrics struct {
			Enabled        bool   `json:"enabled"`
			PushgatewayURL string `json:"pushgateway_url,omitempty"`
			Job            string `json:"job"`
		} `json:"metrics"`
		Analytics struct {
			RedisAddr string `json:"redis_addr,omitempty"`
			RedisDB   int    `json:"redis_db"`
			Retention string `json:"retention"`
		} `json:"analytics"`
		Run struct {
			Workers int `json:"workers"`
		} `json:"run"`
	}{}

	masked.ServiceNow.InstanceURL = c.ServiceNow.InstanceURL
	masked.ServiceNow.IntegrationPath = c.ServiceNow.IntegrationPath
	masked.ServiceNow.Username = c.ServiceNow.Username
	masked.ServiceNow.Password = maskSecret(c.ServiceNow.Password)
	masked.ServiceNow.IntegrationUser = c.ServiceNow.IntegrationUser
	masked.ServiceNow.IntegrationPassword = maskSecret(c.ServiceNow.IntegrationPassword)
	masked.ServiceNow.Timeout = c.ServiceNow.TimeoutStr
	masked.ServiceNow.RateLimit = c.ServiceNow.RateLimit
	masked.ServiceNow.BreakerThreshold = c.ServiceNow.BreakerThreshold
	masked.Templates.Path = c.Templates.Path
	masked.Log.Level = c.Log.Level
	masked.Log.Dir = c.Log.Dir
	masked.Log.Console = c.Log.Console
	masked.History.Enabled = c.History.Enabled
	masked.History.Path = c.History.Path
	masked.History.RunOncePerDay = c.History.RunOncePerDay
	masked.Metrics.Enabled = c.Metrics.Enabled
	masked.Metrics.PushgatewayURL = c.Metrics.PushgatewayURL
	masked.Metrics.Job = c.Metrics.Job
	masked.Analytics.RedisAddr = c.Analytics.RedisAddr
	masked.Analytics.RedisDB = c.Analytics.RedisDB
	masked.Analytics.Retention = c.Analytics.RetentionStr
	masked.Run.Workers = c.Run.Workers

	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret hides a secret value while showing whether one is set.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
