// Package history persists per-template run outcomes in a local SQLite
// file. It backs the run-once-per-day guard and the history subcommand.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// Entry is one recorded per-template outcome.
type Entry struct {
	ID             string
	RunID          string
	Template       string
	RunDate        string
	Outcome        string
	TicketSysID    string
	TicketNumber   string
	Error          string
	Attached       int
	Omitted        int
	FailedRequired int
	CreatedAt      time.Time
}

// Store wraps the SQLite file holding run results.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the database at path and ensures the schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Record stores one template result under the run it belongs to.
func (s *Store) Record(ctx context.Context, runID string, date time.Time, res domain.RunResult) error {
	if s == nil || s.db == nil {
		return nil
	}

	var attached, omitted, failedRequired int
	for _, a := range res.Attachments {
		switch a.Status {
		case domain.AttachmentAttached:
			attached++
		case domain.AttachmentOmittedOptional:
			omitted++
		case domain.AttachmentFailedRequired:
			failedRequired++
		}
	}

	_, err := s.db.ExecContext(ctx, queryInsertResult,
		uuid.NewString(),
		runID,
		res.Template,
		date.Format("2006-01-02"),
		string(res.Outcome),
		res.Ticket.SysID,
		res.Ticket.Number,
		res.Error,
		attached,
		omitted,
		failedRequired,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// CreatedOn reports whether a ticket was already created for the template
// on the given date. Failed attempts do not count: a rerun after a failure
// should try again, not be suppressed.
func (s *Store) CreatedOn(ctx context.Context, template string, date time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}

	var n int
	err := s.db.QueryRowContext(ctx, queryCreatedOn, template, date.Format("2006-01-02")).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, queryRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.Template, &e.RunDate, &e.Outcome,
			&e.TicketSysID, &e.TicketNumber, &e.Error,
			&e.Attached, &e.Omitted, &e.FailedRequired, &createdAt,
		); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
