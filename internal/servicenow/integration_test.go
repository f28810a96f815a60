package servicenow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

// TestIntegrationCreateTicket covers the two-step flow: the integration
// endpoint returns only a ticket number, the table API supplies the sys_id.
func TestIntegrationCreateTicket(t *testing.T) {
	var gotPayload map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/x_acme/v1/create_ritm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("integration endpoint got %s", r.Method)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "int.user" || pass != "int.pw" {
			t.Error("integration credentials not used")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		io.WriteString(w, `{"result":{"requestItemNumber":"RITM0020007"}}`)
	})
	mux.HandleFunc("/api/now/table/sc_req_item", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("sysparm_query"); q != "number=RITM0020007" {
			t.Errorf("sysparm_query = %q", q)
		}
		io.WriteString(w, `{"result":[{"sys_id":"s2007","number":"RITM0020007"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ic := NewIntegration(Config{
		InstanceURL: srv.URL,
		Username:    "int.user",
		Password:    "int.pw",
	}, "/api/x_acme/v1/create_ritm", zerolog.Nop())

	ticket, err := ic.CreateTicket(context.Background(), "Network Ops", "patch window", "Apply the patch set.")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if ticket.SysID != "s2007" || ticket.Number != "RITM0020007" {
		t.Errorf("ticket = %+v", ticket)
	}

	if gotPayload["requested_for"] != "Network Ops" {
		t.Errorf("requested_for = %q", gotPayload["requested_for"])
	}
	if gotPayload["summary"] != "patch window" || gotPayload["description"] != "Apply the patch set." {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestIntegrationCreateTicket_NoNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":{}}`)
	}))
	t.Cleanup(srv.Close)

	ic := NewIntegration(Config{
		InstanceURL: srv.URL,
		Username:    "int.user",
		Password:    "int.pw",
	}, "/api/x_acme/v1/create_ritm", zerolog.Nop())

	_, err := ic.CreateTicket(context.Background(), "Network Ops", "s", "d")
	if err == nil {
		t.Fatal("expected error when the integration returns no number")
	}
}

func TestIntegrationCreateTicket_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	ic := NewIntegration(Config{
		InstanceURL: srv.URL,
		Username:    "int.user",
		Password:    "int.pw",
	}, "/api/x_acme/v1/create_ritm", zerolog.Nop())

	_, err := ic.CreateTicket(context.Background(), "Network Ops", "s", "d")
	if err == nil {
		t.Fatal("expected error for 503 reply")
	}
}
