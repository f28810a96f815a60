// servicenow-mock is a throwaway stand-in for a ServiceNow instance. It
// implements just enough of the Table API, the Attachment API, and the
// custom integration endpoint for snscheduler to run end to end against
// localhost. State lives in memory and resets on restart or via /reset.
//
// Environment knobs:
//
//	ADDR              listen address (default ":8090")
//	INTEGRATION_PATH  integration endpoint path (default "/api/x_corp/v1/create_ritm")
//	STRICT_GROUPS     comma-separated group names; when set, only these resolve
//	FAIL_CREATE       fail this many creates with 500 before recovering
//	FAIL_UPDATE       fail this many updates with 500 before recovering
//	FAIL_ATTACH       fail this many uploads with 500 before recovering
package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

type ticket struct {
	SysID       string            `json:"sys_id"`
	Number      string            `json:"number"`
	Fields      map[string]string `json:"fields"`
	Attachments []attachment      `json:"attachments"`
	CreatedAt   string            `json:"created_at"`
}

type attachment struct {
	SysID    string `json:"sys_id"`
	FileName string `json:"file_name"`
	Size     int    `json:"size_bytes"`
}

var (
	mu       sync.Mutex
	seq      int
	attSeq   int
	byID     = map[string]*ticket{}
	byNumber = map[string]*ticket{}

	failCreate int
	failUpdate int
	failAttach int

	strictGroups map[string]bool
)

func main() {
	addr := ":8090"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	failCreate = envInt("FAIL_CREATE")
	failUpdate = envInt("FAIL_UPDATE")
	failAttach = envInt("FAIL_ATTACH")
	if v := os.Getenv("STRICT_GROUPS"); v != "" {
		strictGroups = map[string]bool{}
		for _, name := range strings.Split(v, ",") {
			strictGroups[strings.TrimSpace(name)] = true
		}
	}

	integrationPath := os.Getenv("INTEGRATION_PATH")
	if integrationPath == "" {
		integrationPath = "/api/x_corp/v1/create_ritm"
	}

	http.HandleFunc("/api/now/table/sc_req_item", itemsHandler)
	http.HandleFunc("/api/now/table/sc_req_item/", itemHandler)
	http.HandleFunc("/api/now/table/sys_user_group", groupsHandler)
	http.HandleFunc("/api/now/attachment/file", attachHandler)
	http.HandleFunc(integrationPath, integrationHandler)
	http.HandleFunc("/state", stateHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		seq = 0
		attSeq = 0
		byID = map[string]*ticket{}
		byNumber = map[string]*ticket{}
		failCreate = envInt("FAIL_CREATE")
		failUpdate = envInt("FAIL_UPDATE")
		failAttach = envInt("FAIL_ATTACH")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("servicenow-mock listening on %s (integration=%s)", addr, integrationPath)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func envInt(key string) int {
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}

// authorized rejects requests without basic auth, like a real instance.
func authorized(w http.ResponseWriter, r *http.Request) bool {
	if _, _, ok := r.BasicAuth(); !ok {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return false
	}
	return true
}

func itemsHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	switch r.Method {
	case http.MethodPost:
		createItem(w, r)
	case http.MethodGet:
		lookupItem(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func createItem(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload: "+err.Error())
		return
	}

	mu.Lock()
	if failCreate > 0 {
		failCreate--
		mu.Unlock()
		writeError(w, http.StatusInternalServerError, "injected create failure")
		return
	}
	t := newTicket(fields)
	mu.Unlock()

	log.Printf("servicenow-mock: created %s (%s)", t.Number, t.SysID)
	writeResult(w, http.StatusCreated, ticketJSON(t))
}

// newTicket mints a record. Caller holds mu.
func newTicket(fields map[string]string) *ticket {
	seq++
	t := &ticket{
		SysID:     fmt.Sprintf("%032x", seq),
		Number:    fmt.Sprintf("RITM%07d", 10000+seq),
		Fields:    fields,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if t.Fields == nil {
		t.Fields = map[string]string{}
	}
	byID[t.SysID] = t
	byNumber[t.Number] = t
	return t
}

func lookupItem(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("sysparm_query")
	number := strings.TrimPrefix(query, "number=")

	mu.Lock()
	t, ok := byNumber[number]
	rows := []map[string]string{}
	if ok {
		rows = append(rows, ticketJSON(t))
	}
	mu.Unlock()

	writeResult(w, http.StatusOK, rows)
}

func itemHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	sysID := strings.TrimPrefix(r.URL.Path, "/api/now/table/sc_req_item/")

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		updateItem(w, r, sysID)
	case http.MethodGet:
		mu.Lock()
		t, ok := byID[sysID]
		var row map[string]string
		if ok {
			row = ticketJSON(t)
		}
		mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "no record "+sysID)
			return
		}
		writeResult(w, http.StatusOK, row)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func updateItem(w http.ResponseWriter, r *http.Request, sysID string) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload: "+err.Error())
		return
	}

	mu.Lock()
	if failUpdate > 0 {
		failUpdate--
		mu.Unlock()
		writeError(w, http.StatusInternalServerError, "injected update failure")
		return
	}
	t, ok := byID[sysID]
	if ok {
		for k, v := range fields {
			t.Fields[k] = v
		}
	}
	var row map[string]string
	if ok {
		row = ticketJSON(t)
	}
	mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no record "+sysID)
		return
	}
	log.Printf("servicenow-mock: updated %s (%d fields)", t.Number, len(fields))
	writeResult(w, http.StatusOK, row)
}

func groupsHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	query := r.URL.Query().Get("sysparm_query")
	name := strings.TrimPrefix(query, "name=")

	rows := []map[string]string{}
	if name != "" && (strictGroups == nil || strictGroups[name]) {
		rows = append(rows, map[string]string{
			"sys_id": groupSysID(name),
			"name":   name,
		})
	}
	writeResult(w, http.StatusOK, rows)
}

// groupSysID derives a stable identifier so repeated lookups agree.
func groupSysID(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%032x", h.Sum32())
}

func attachHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sysID := r.URL.Query().Get("table_sys_id")
	fileName := r.URL.Query().Get("file_name")
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	mu.Lock()
	if failAttach > 0 {
		failAttach--
		mu.Unlock()
		writeError(w, http.StatusInternalServerError, "injected upload failure")
		return
	}
	t, ok := byID[sysID]
	var att attachment
	if ok {
		attSeq++
		att = attachment{
			SysID:    fmt.Sprintf("att%029x", attSeq),
			FileName: fileName,
			Size:     len(body),
		}
		t.Attachments = append(t.Attachments, att)
	}
	mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no record "+sysID)
		return
	}
	log.Printf("servicenow-mock: attached %s to %s (%d bytes)", fileName, t.Number, att.Size)
	writeResult(w, http.StatusCreated, map[string]string{
		"sys_id":    att.SysID,
		"file_name": att.FileName,
	})
}

func integrationHandler(w http.ResponseWriter, r *http.Request) {
	if !authorized(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload struct {
		RequestedFor string `json:"requested_for"`
		Summary      string `json:"summary"`
		Description  string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload: "+err.Error())
		return
	}

	mu.Lock()
	if failCreate > 0 {
		failCreate--
		mu.Unlock()
		writeError(w, http.StatusInternalServerError, "injected create failure")
		return
	}
	t := newTicket(map[string]string{
		"short_description": payload.Summary,
		"description":       payload.Description,
		"assignment_group":  payload.RequestedFor,
		"contact_type":      "Integration",
	})
	mu.Unlock()

	log.Printf("servicenow-mock: integration created %s for %q", t.Number, payload.RequestedFor)
	writeResult(w, http.StatusCreated, map[string]string{
		"requestItemNumber": t.Number,
	})
}

func stateHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	tickets := make([]*ticket, 0, len(byID))
	for _, t := range byID {
		tickets = append(tickets, t)
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(tickets),
		"tickets": tickets,
	})
}

// ticketJSON flattens a record the way the Table API answers: identifier
// pair plus every stored field. Caller holds mu.
func ticketJSON(t *ticket) map[string]string {
	out := map[string]string{
		"sys_id": t.SysID,
		"number": t.Number,
	}
	for k, v := range t.Fields {
		out[k] = v
	}
	return out
}

func writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": message},
	})
}
