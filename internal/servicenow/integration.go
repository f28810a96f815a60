package servicenow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// IntegrationClient creates requested items through a custom integration
// endpoint instead of the table API. The endpoint answers with a ticket
// number only, so the full identifier pair is recovered with a table
// lookup afterward. It carries its own client because integration
// credentials may differ from the primary pair.
type IntegrationClient struct {
	client   *Client
	endpoint string
}

// NewIntegration builds an integration creator for
// {instance_url}/{integrationPath}. cfg supplies the integration
// credentials and transport policy.
func NewIntegration(cfg Config, integrationPath string, log zerolog.Logger) *IntegrationClient {
	base := strings.TrimSuffix(cfg.InstanceURL, "/")
	return &IntegrationClient{
		client:   New(cfg, log),
		endpoint: base + "/" + strings.TrimPrefix(integrationPath, "/"),
	}
}

// WithMetrics attaches a metrics sink to the underlying client.
func (ic *IntegrationClient) WithMetrics(m MetricsSink) *IntegrationClient {
	ic.client.WithMetrics(m)
	return ic
}

// CreateTicket posts the creation request to the integration endpoint and
// resolves the returned number into a full ticket identifier.
func (ic *IntegrationClient) CreateTicket(ctx context.Context, group, shortDescription, description string) (domain.Ticket, error) {
	payload := map[string]string{
		"requested_for": group,
		"summary":       shortDescription,
		"description":   description,
	}

	data, err := ic.client.doJSON(ctx, "integration create", http.MethodPost, ic.endpoint, payload)
	if err != nil {
		return domain.Ticket{}, err
	}

	var env struct {
		Result struct {
			RequestItemNumber string `json:"requestItemNumber"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Ticket{}, fmt.Errorf("integration create: decode reply: %w", err)
	}
	if env.Result.RequestItemNumber == "" {
		return domain.Ticket{}, fmt.Errorf("integration create: reply carries no request item number")
	}

	return ic.client.GetRequestedItem(ctx, env.Result.RequestItemNumber)
}
