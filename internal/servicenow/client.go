package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/circuitbreaker"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/metrics"
)

const (
	tableRequestedItem = "sc_req_item"
	tableUserGroup     = "sys_user_group"

	// maxResponseBytes bounds how much of a reply is read; table API
	// replies are small and error bodies only need a diagnostic snippet.
	maxResponseBytes = 64 * 1024

	defaultTimeout = 30 * time.Second
)

// MetricsSink receives backend call timings. Narrow on purpose so the
// metrics package stays optional.
type MetricsSink interface {
	BackendRequest(op string, statusClass string, duration time.Duration)
}

// Config carries everything needed to talk to one instance.
type Config struct {
	InstanceURL string
	Username    string
	Password    string

	Timeout time.Duration

	// RateLimit caps requests per second; 0 disables the limiter.
	RateLimit int

	// BreakerThreshold: consecutive transport failures before calls fail
	// fast; 0 disables the breaker.
	BreakerThreshold int
}

// Client drives the ServiceNow Table and Attachment APIs with basic auth.
// It never retries; a failure is reported to the caller and, for
// transport-class failures, counted by the circuit breaker so a dead
// instance stops costing every remaining call a full timeout.
type Client struct {
	baseURL  string
	username string
	password string

	http    *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	metrics MetricsSink
	log     zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(cfg.InstanceURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	if cfg.BreakerThreshold > 0 {
		c.breaker = circuitbreaker.New(cfg.BreakerThreshold, 30*time.Second)
	}
	return c
}

// WithMetrics attaches a metrics sink. Returns the client for chaining.
func (c *Client) WithMetrics(m MetricsSink) *Client {
	c.metrics = m
	return c
}

// CreateTicket creates a requested item carrying the requester context
// and returns its identifier pair. Descriptive fields land separately in
// the update step.
func (c *Client) CreateTicket(ctx context.Context, group, shortDescription, description string) (domain.Ticket, error) {
	payload := map[string]string{
		"caller_id":         c.username,
		"contact_type":      "Interface",
		"requested_for":     c.username,
		"assignment_group":  group,
		"short_description": shortDescription,
		"description":       description,
	}

	data, err := c.doJSON(ctx, "create", http.MethodPost, c.tableURL(tableRequestedItem, nil), payload)
	if err != nil {
		return domain.Ticket{}, err
	}

	var env struct {
		Result ticketRecord `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Ticket{}, fmt.Errorf("create: decode reply: %w", err)
	}
	if env.Result.SysID == "" {
		return domain.Ticket{}, fmt.Errorf("create: reply carries no sys_id")
	}
	return domain.Ticket{SysID: env.Result.SysID, Number: env.Result.Number}, nil
}

// UpdateTicket applies field values to an existing requested item.
func (c *Client) UpdateTicket(ctx context.Context, sysID string, fields map[string]string) error {
	u := c.tableURL(tableRequestedItem, nil) + "/" + url.PathEscape(sysID)
	_, err := c.doJSON(ctx, "update", http.MethodPut, u, fields)
	return err
}

// ResolveGroup maps a group display name onto its sys_id. A name that
// matches nothing is an error; assignment must not silently fall back to
// free text.
func (c *Client) ResolveGroup(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("sysparm_query", "name="+name)
	q.Set("sysparm_fields", "sys_id,name")
	q.Set("sysparm_limit", "1")

	data, err := c.do(ctx, "resolve group", http.MethodGet, c.tableURL(tableUserGroup, q), nil, "")
	if err != nil {
		return "", err
	}

	var env struct {
		Result []struct {
			SysID string `json:"sys_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("resolve group: decode reply: %w", err)
	}
	if len(env.Result) == 0 || env.Result[0].SysID == "" {
		return "", fmt.Errorf("resolve group: no group named %q", name)
	}
	return env.Result[0].SysID, nil
}

// GetRequestedItem looks up a requested item by its ticket number. The
// integration flow uses this to recover the sys_id behind a number-only
// reply.
func (c *Client) GetRequestedItem(ctx context.Context, number string) (domain.Ticket, error) {
	q := url.Values{}
	q.Set("sysparm_query", "number="+number)
	q.Set("sysparm_fields", "sys_id,number")
	q.Set("sysparm_limit", "1")

	data, err := c.do(ctx, "lookup item", http.MethodGet, c.tableURL(tableRequestedItem, q), nil, "")
	if err != nil {
		return domain.Ticket{}, err
	}

	var env struct {
		Result []ticketRecord `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Ticket{}, fmt.Errorf("lookup item: decode reply: %w", err)
	}
	if len(env.Result) == 0 {
		return domain.Ticket{}, fmt.Errorf("lookup item: no requested item numbered %q", number)
	}
	return domain.Ticket{SysID: env.Result[0].SysID, Number: env.Result[0].Number}, nil
}

// AttachFile uploads one file to a requested item. The file is sent as
// raw bytes with a Content-Type guessed from its extension.
func (c *Client) AttachFile(ctx context.Context, sysID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	q := url.Values{}
	q.Set("table_name", tableRequestedItem)
	q.Set("table_sys_id", sysID)
	q.Set("file_name", filepath.Base(path))
	u := c.baseURL + "/api/now/attachment/file?" + q.Encode()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = c.do(ctx, "attach", http.MethodPost, u, bytes.NewReader(data), contentType)
	return err
}

type ticketRecord struct {
	SysID  string `json:"sys_id"`
	Number string `json:"number"`
}

func (c *Client) tableURL(table string, query url.Values) string {
	u := c.baseURL + "/api/now/table/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) doJSON(ctx context.Context, op, method, u string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal: %w", op, err)
	}
	return c.do(ctx, op, method, u, bytes.NewReader(body), "application/json")
}

// do performs one request under the client's transport policy: breaker
// check, rate limit, basic auth, bounded response read. Non-2xx replies
// become *RemoteError. 4xx replies do not count against the breaker; the
// instance answered, the request was just wrong.
func (c *Client) do(ctx context.Context, op, method, u string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		c.observe(op, metrics.StatusClassError, time.Since(start))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	duration := time.Since(start)
	if err != nil {
		c.breaker.RecordFailure()
		c.observe(op, metrics.StatusClassError, duration)
		return nil, fmt.Errorf("%s: read reply: %w", op, err)
	}

	c.observe(op, metrics.ClassifyStatus(resp.StatusCode), duration)
	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return nil, &RemoteError{Op: op, StatusCode: resp.StatusCode, Detail: snippet(data)}
	}

	c.breaker.RecordSuccess()
	return data, nil
}

func (c *Client) observe(op, class string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.BackendRequest(op, class, d)
	}
}

// snippet trims an error body down to one diagnostic line.
func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return strings.ReplaceAll(s, "\n", " ")
}
