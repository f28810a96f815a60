package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/analytics"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/config"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/history"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/logging"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/metrics"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/pipeline"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/report"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/runner"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/scheduler"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/servicenow"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/template"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		os.Exit(runRun(args))
	case "due":
		os.Exit(runDue(args))
	case "validate":
		os.Exit(runValidate(args))
	case "config":
		os.Exit(runConfig(args))
	case "history":
		os.Exit(runHistory(args))
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`snscheduler - scheduled ServiceNow ticket creation

Usage:
  snscheduler <command> [flags]

Commands:
  run        Evaluate schedules for the run date and create the due tickets
  due        Show which templates would fire on a date (no backend calls)
  validate   Validate configuration and templates (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  history    Show recent run results from the local ledger
  version    Print version information

Flags:
  -config PATH   Config file (default: snscheduler.yaml, or $SNSCHEDULER_CONFIG)
  -date DATE     Run date as YYYY-MM-DD (run, due; default: today)
  -dry-run       Report what would run without creating tickets (run)
  -json          Write a JSON report to stdout (run, due, history)
  -limit N       Number of history entries to show (history; default: 20)

Environment Variables:
  SN_API_USER                ServiceNow API username (required for run)
  SN_API_PASSWORD            ServiceNow API password (required for run)
  SN_INTEGRATION_USER        Integration endpoint username (falls back to SN_API_USER)
  SN_INTEGRATION_PASSWORD    Integration endpoint password (falls back to SN_API_PASSWORD)
  SNSCHEDULER_CONFIG         Config file path when -config is not given`)
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config file path")
	dateFlag := fs.String("date", "", "run date as YYYY-MM-DD (default: today)")
	dryRun := fs.Bool("dry-run", false, "report what would run without creating tickets")
	jsonOut := fs.Bool("json", false, "write a JSON run report to stdout")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	today, err := parseRunDate(*dateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	if !*dryRun {
		if err := config.ValidateCredentials(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			return exitInvalidConfig
		}
	}

	log, closeLog, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console,
		Dir:     cfg.Log.Dir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		return exitRuntimeError
	}
	defer closeLog()

	logConfigWarnings(log, cfg)

	templates, rejected, err := template.Load(cfg.Templates.Path)
	if err != nil {
		log.Error().Err(err).Msg("template load failed")
		return exitInvalidConfig
	}
	for _, le := range rejected {
		log.Error().Str("path", le.Path).Err(le.Err).Msg("template rejected; it will never be due")
	}
	if len(templates) == 0 {
		log.Warn().Str("pattern", cfg.Templates.Path).Msg("no usable templates matched")
	}
	log.Info().
		Int("loaded", len(templates)).
		Int("rejected", len(rejected)).
		Str("date", today.Format("2006-01-02")).
		Msg("templates loaded")

	if *dryRun {
		printDecisions(templates, today)
		return exitSuccess
	}

	// Metrics are pushed once at the end of the run; without a gateway
	// there is nowhere to send them, so the sink stays nil.
	var sink *metrics.PrometheusSink
	if cfg.Metrics.Enabled && cfg.Metrics.PushgatewayURL != "" {
		sink = metrics.NewPushSink(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, log)
		sink.TemplatesLoaded(len(templates))
		log.Info().Str("gateway", cfg.Metrics.PushgatewayURL).Str("job", cfg.Metrics.Job).Msg("metrics enabled")
	}

	client := servicenow.New(servicenow.Config{
		InstanceURL:      cfg.ServiceNow.InstanceURL,
		Username:         cfg.ServiceNow.Username,
		Password:         cfg.ServiceNow.Password,
		Timeout:          cfg.ServiceNow.Timeout,
		RateLimit:        cfg.ServiceNow.RateLimit,
		BreakerThreshold: cfg.ServiceNow.BreakerThreshold,
	}, componentLogger(log, "servicenow"))
	if sink != nil {
		client = client.WithMetrics(sink)
	}

	pipe := pipeline.New(client, componentLogger(log, "pipeline"))
	if sink != nil {
		pipe = pipe.WithMetrics(sink)
	}
	if cfg.ServiceNow.IntegrationPath != "" {
		integ := servicenow.NewIntegration(servicenow.Config{
			InstanceURL:      cfg.ServiceNow.InstanceURL,
			Username:         cfg.ServiceNow.IntegrationUser,
			Password:         cfg.ServiceNow.IntegrationPassword,
			Timeout:          cfg.ServiceNow.Timeout,
			RateLimit:        cfg.ServiceNow.RateLimit,
			BreakerThreshold: cfg.ServiceNow.BreakerThreshold,
		}, cfg.ServiceNow.IntegrationPath, componentLogger(log, "servicenow"))
		if sink != nil {
			integ = integ.WithMetrics(sink)
		}
		pipe = pipe.WithIntegration(integ)
		log.Info().Str("path", cfg.ServiceNow.IntegrationPath).Msg("integration endpoint enabled")
	} else {
		log.Info().Msg("integration_path not set; integration templates use the table API")
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.Path, componentLogger(log, "history"))
		if err != nil {
			// A broken ledger must not block scheduled tickets.
			log.Error().Err(err).Str("path", cfg.History.Path).Msg("history open failed; continuing without the ledger")
			hist = nil
		} else {
			defer hist.Close()
			log.Info().Str("path", cfg.History.Path).Msg("history enabled")
		}
	}

	r := runner.New(pipe, componentLogger(log, "runner")).WithWorkers(cfg.Run.Workers)
	if hist != nil {
		r = r.WithHistory(hist)
		if cfg.History.RunOncePerDay {
			r = r.WithDuplicateGuard()
		}
	}
	if cfg.Analytics.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr: cfg.Analytics.RedisAddr,
			DB:   cfg.Analytics.RedisDB,
		})
		defer rc.Close()
		r = r.WithAnalytics(analytics.NewRedisSink(rc, cfg.Analytics.Retention))
		log.Info().Str("redis", cfg.Analytics.RedisAddr).Msg("analytics enabled")
	} else {
		log.Info().Msg("redis_addr not set; analytics disabled")
	}
	if sink != nil {
		r = r.WithMetrics(sink)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	results := r.Run(ctx, runID, templates, today)

	report.Log(log, results)
	if *jsonOut {
		if err := report.WriteJSON(os.Stdout, report.Build(runID, today, results)); err != nil {
			log.Error().Err(err).Msg("json report failed")
		}
	}

	if sink != nil {
		// Push on a fresh context so an interrupted run still ships its
		// partial metrics.
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sink.Push(pushCtx); err != nil {
			log.Warn().Err(err).Msg("metrics push failed")
		}
	}

	return exitCodeFor(report.Tally(results))
}

func runDue(args []string) int {
	fs := flag.NewFlagSet("due", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config file path")
	dateFlag := fs.String("date", "", "run date as YYYY-MM-DD (default: today)")
	jsonOut := fs.Bool("json", false, "write the decisions as JSON to stdout")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	today, err := parseRunDate(*dateFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	templates, rejected, err := template.Load(cfg.Templates.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "template load failed: %v\n", err)
		return exitInvalidConfig
	}
	for _, le := range rejected {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", le)
	}

	if *jsonOut {
		return printDecisionsJSON(templates, today)
	}
	fmt.Printf("date: %s\n", today.Format("2006-01-02 (Monday)"))
	printDecisions(templates, today)
	return exitSuccess
}

// dueDocument is the -json shape of the due subcommand.
type dueDocument struct {
	Date      string        `json:"date"`
	Templates []dueDecision `json:"templates"`
	Due       int           `json:"due"`
}

type dueDecision struct {
	Template string `json:"template"`
	Schedule string `json:"schedule"`
	Due      bool   `json:"due"`
}

func printDecisionsJSON(templates []domain.Template, today time.Time) int {
	doc := dueDocument{
		Date:      today.Format("2006-01-02"),
		Templates: []dueDecision{},
	}
	for _, d := range scheduler.Decisions(templates, today) {
		doc.Templates = append(doc.Templates, dueDecision{
			Template: d.Template.Name,
			Schedule: describeSchedule(d.Template.Schedule),
			Due:      d.Due,
		})
		if d.Due {
			doc.Due++
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		return exitRuntimeError
	}
	return exitSuccess
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config file path")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	templates, rejected, err := template.Load(cfg.Templates.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	fmt.Printf("templates: %d ok, %d rejected\n", len(templates), len(rejected))
	for _, le := range rejected {
		fmt.Printf("  - %v\n", le)
	}
	if len(rejected) > 0 {
		return exitInvalidConfig
	}
	return exitSuccess
}

func runConfig(args []string) int {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config file path")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}
	fmt.Println(string(data))
	return exitSuccess
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgFlag := fs.String("config", "", "config file path")
	limit := fs.Int("limit", 20, "number of entries to show")
	jsonOut := fs.Bool("json", false, "write the entries as JSON to stdout")
	fs.Parse(args)

	cfg, err := config.Load(resolveConfigPath(*cfgFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	if !cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "history is disabled (set history.enabled: true)")
		return exitInvalidConfig
	}

	store, err := history.Open(cfg.History.Path, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open history: %v\n", err)
		return exitRuntimeError
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
		return exitRuntimeError
	}

	if *jsonOut {
		return printHistoryJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("no runs recorded yet")
		return exitSuccess
	}
	fmt.Printf("%-10s  %-24s  %-26s  %-12s  %s\n", "DATE", "TEMPLATE", "OUTCOME", "TICKET", "ERROR")
	for _, e := range entries {
		fmt.Printf("%-10s  %-24s  %-26s  %-12s  %s\n", e.RunDate, e.Template, e.Outcome, e.TicketNumber, e.Error)
	}
	return exitSuccess
}

// historyEntry is the -json shape of one ledger row.
type historyEntry struct {
	RunID          string `json:"run_id"`
	Template       string `json:"template"`
	RunDate        string `json:"run_date"`
	Outcome        string `json:"outcome"`
	TicketSysID    string `json:"ticket_sys_id,omitempty"`
	TicketNumber   string `json:"ticket_number,omitempty"`
	Error          string `json:"error,omitempty"`
	Attached       int    `json:"attached"`
	Omitted        int    `json:"omitted"`
	FailedRequired int    `json:"failed_required"`
	CreatedAt      string `json:"created_at"`
}

func printHistoryJSON(entries []history.Entry) int {
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			RunID:          e.RunID,
			Template:       e.Template,
			RunDate:        e.RunDate,
			Outcome:        e.Outcome,
			TicketSysID:    e.TicketSysID,
			TicketNumber:   e.TicketNumber,
			Error:          e.Error,
			Attached:       e.Attached,
			Omitted:        e.Omitted,
			FailedRequired: e.FailedRequired,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		return exitRuntimeError
	}
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("snscheduler version %s (commit: %s)\n", version, commit)
	return exitSuccess
}

// printDecisions lists every template's verdict for the date, due or not.
func printDecisions(templates []domain.Template, today time.Time) {
	decisions := scheduler.Decisions(templates, today)
	due := 0
	for _, d := range decisions {
		verdict := "-"
		if d.Due {
			verdict = "due"
			due++
		}
		fmt.Printf("%-28s %-4s %s\n", d.Template.Name, verdict, describeSchedule(d.Template.Schedule))
	}
	fmt.Printf("%d of %d templates due\n", due, len(decisions))
}

// describeSchedule renders a rule for the due listing.
func describeSchedule(r domain.Rule) string {
	switch r.Frequency {
	case domain.FrequencyDaily:
		return "daily (Mon-Fri)"
	case domain.FrequencyWeekly:
		return fmt.Sprintf("weekly (%s)", weekdayName(r.DayOfWeek))
	case domain.FrequencyMonthly:
		return fmt.Sprintf("monthly (day %d)", r.DayOfMonth)
	case domain.FrequencyQuarterly:
		return fmt.Sprintf("quarterly (day %d of months %v)", r.DayOfMonth, r.Months)
	default:
		return string(r.Frequency)
	}
}

// weekdayName maps the Monday-based day index used by weekly rules.
func weekdayName(d int) string {
	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	if d < 0 || d >= len(names) {
		return fmt.Sprintf("day %d", d)
	}
	return names[d]
}

func componentLogger(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// resolveConfigPath picks the config file: flag, then environment, then
// the default next to the binary's working directory.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("SNSCHEDULER_CONFIG"); env != "" {
		return env
	}
	return "snscheduler.yaml"
}

// parseRunDate turns the -date flag into the run date. Empty means today.
func parseRunDate(s string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// exitCodeFor maps run totals onto the process exit code. A run where
// every ticket landed with every required attachment exits 0; anything an
// operator must look at exits 1.
func exitCodeFor(t report.Totals) int {
	if t.Failed > 0 || t.AttachmentFailures > 0 {
		return exitRuntimeError
	}
	return exitSuccess
}

// logConfigWarnings surfaces configurations that run but probably do not
// do what the operator intended.
func logConfigWarnings(log zerolog.Logger, cfg config.Config) {
	if cfg.History.RunOncePerDay && !cfg.History.Enabled {
		log.Warn().Msg("config: [P0] history.run_once_per_day=true but history.enabled=false; the duplicate guard is inert without the ledger")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.PushgatewayURL == "" {
		log.Warn().Msg("config: [P1] metrics.enabled=true but metrics.pushgateway_url is empty; collected metrics have nowhere to go")
	}
	if !cfg.History.Enabled {
		log.Info().Msg("config: history disabled; runs leave no local record")
	}
}
