// Package history records roster imports and repository operations in the
// run-history database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/repo-edu/repo-edu-sub001/internal/db"
	"github.com/repo-edu/repo-edu-sub001/internal/gate"
	"github.com/repo-edu/repo-edu-sub001/internal/reconcile"
)

// ErrRunNotFound indicates no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Source identifies where an import came from.
type Source string

const (
	SourceFile   Source = "file"
	SourceLMS    Source = "lms"
	SourceAPI    Source = "api"
	SourceGroups Source = "groups"
)

// Kind distinguishes the two run tables.
type Kind string

const (
	KindImport    Kind = "import"
	KindOperation Kind = "operation"
)

// ImportRun is one recorded member or group import.
type ImportRun struct {
	ID           string            `json:"id"`
	Profile      string            `json:"profile"`
	Source       Source            `json:"source"`
	SourceDetail string            `json:"source_detail,omitempty"`
	Summary      reconcile.Summary `json:"summary"`
	CreatedAt    time.Time         `json:"created_at"`
}

// OperationRun is one recorded gate run.
type OperationRun struct {
	ID         string           `json:"id"`
	Profile    string           `json:"profile"`
	Operation  gate.Operation   `json:"operation"`
	Assignment string           `json:"assignment"`
	Platform   string           `json:"platform,omitempty"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Errors     []gate.RepoError `json:"errors"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Entry is a row in the combined history listing.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Profile   string    `json:"profile"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Store reads and writes run history.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// RecordImport stores an import summary and returns the run.
func (s *Store) RecordImport(ctx context.Context, profile string, source Source, detail string, sum reconcile.Summary) (*ImportRun, error) {
	run := &ImportRun{
		ID:           uuid.New().String(),
		Profile:      profile,
		Source:       source,
		SourceDetail: detail,
		Summary:      sum,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (id, profile, source, source_detail, added, updated, unchanged, missing_email, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, string(run.Source), run.SourceDetail,
		sum.Added, sum.Updated, sum.Unchanged, sum.MissingEmail,
		run.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting import run: %w", err)
	}
	return run, nil
}

// RecordOperation stores the outcome of a gate run.
func (s *Store) RecordOperation(ctx context.Context, profile, platform string, res *gate.Result) (*OperationRun, error) {
	errs := res.Errors
	if errs == nil {
		errs = []gate.RepoError{}
	}
	run := &OperationRun{
		ID:         uuid.New().String(),
		Profile:    profile,
		Operation:  res.Operation,
		Assignment: res.Assignment,
		Platform:   platform,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
		Skipped:    len(res.SkippedGroups),
		Errors:     errs,
		CreatedAt:  s.now().UTC().Truncate(time.Second),
	}
	encoded, err := json.Marshal(run.Errors)
	if err != nil {
		return nil, fmt.Errorf("marshalling run errors: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operation_runs (id, profile, operation, assignment, platform, succeeded, failed, skipped, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Profile, string(run.Operation), run.Assignment, run.Platform,
		run.Succeeded, run.Failed, run.Skipped, string(encoded),
		run.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting operation run: %w", err)
	}
	return run, nil
}

// Filter controls what List returns.
type Filter struct {
	Profile string
	Kind    Kind
	Limit   int
}

// List returns imports and operations newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var parts []string
	var args []any

	where := ""
	if f.Profile != "" {
		where = " WHERE profile = ?"
	}
	if f.Kind == "" || f.Kind == KindImport {
		parts = append(parts, `SELECT id, 'import', profile,
			source || ': ' || added || ' added, ' || updated || ' updated, ' || unchanged || ' unchanged, ' || missing_email || ' missing email',
			created_at FROM import_runs`+where)
		if f.Profile != "" {
			args = append(args, f.Profile)
		}
	}
	if f.Kind == "" || f.Kind == KindOperation {
		parts = append(parts, `SELECT id, 'operation', profile,
			operation || ' ' || assignment || ': ' || succeeded || ' succeeded, ' || failed || ' failed, ' || skipped || ' skipped',
			created_at FROM operation_runs`+where)
		if f.Profile != "" {
			args = append(args, f.Profile)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("unknown history kind %q", f.Kind)
	}

	query := strings.Join(parts, " UNION ALL ") + " ORDER BY 5 DESC, 1"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var kind, created string
		if err := rows.Scan(&e.ID, &kind, &e.Profile, &e.Summary, &created); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = parseTime(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Operation loads one operation run with its errors.
func (s *Store) Operation(ctx context.Context, id string) (*OperationRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, profile, operation, assignment, platform, succeeded, failed, skipped, errors, created_at
		FROM operation_runs WHERE id = ?`, id)

	var run OperationRun
	var op, errs, created string
	err := row.Scan(&run.ID, &run.Profile, &op, &run.Assignment, &run.Platform,
		&run.Succeeded, &run.Failed, &run.Skipped, &errs, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning operation run: %w", err)
	}
	run.Operation = gate.Operation(op)
	if err := json.Unmarshal([]byte(errs), &run.Errors); err != nil {
		return nil, fmt.Errorf("parsing run errors: %w", err)
	}
	run.CreatedAt = parseTime(created)
	return &run, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
