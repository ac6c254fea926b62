package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storyqa/pkg/logx"
	"storyqa/pkg/testcase"
)

// DefaultListLimit caps list queries when no limit is given.
const DefaultListLimit = 20

// ErrRunNotFound is returned when no run matches.
var ErrRunNotFound = errors.New("run not found")

// Store is the history database.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the database at path and brings the
// schema up to date. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and an in-memory database lives only as
	// long as its one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("database ready: %s", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SaveRun stores a run and its cases atomically. Empty ID and CreatedAt are
// filled in on the passed value.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.CaseCount = len(run.Cases)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generation_runs (id, issue_key, path, model, model_error, case_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.IssueKey, run.Path, run.Model, run.ModelError, run.CaseCount, formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i := range run.Cases {
		tc := &run.Cases[i]
		steps, err := json.Marshal(tc.Steps)
		if err != nil {
			return fmt.Errorf("failed to marshal steps: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO generated_cases (run_id, position, title, description, steps_json, expected_result, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, tc.Title, tc.Description, string(steps), tc.ExpectedResult, string(tc.Priority))
		if err != nil {
			return fmt.Errorf("failed to insert case %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("saved run %s (%s, %d cases)", run.ID, run.Path, run.CaseCount)
	return nil
}

// ListRuns returns runs newest first, without cases. An empty issueKey
// lists runs for every issue.
func (s *Store) ListRuns(ctx context.Context, issueKey string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT id, issue_key, path, model, model_error, case_count, created_at
		FROM generation_runs`
	args := []any{}
	if issueKey != "" {
		query += ` WHERE issue_key = ?`
		args = append(args, issueKey)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the newest run for issueKey with its cases.
func (s *Store) LatestRun(ctx context.Context, issueKey string) (*Run, error) {
	runs, err := s.ListRuns(ctx, issueKey, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrRunNotFound, issueKey)
	}
	return s.GetRun(ctx, runs[0].ID)
}

// GetRun returns a run with its cases.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, issue_key, path, model, model_error, case_count, created_at
		FROM generation_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title, description, steps_json, expected_result, priority
		FROM generated_cases WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	run.Cases = []testcase.TestCase{}
	for rows.Next() {
		var tc testcase.TestCase
		var steps, priority string
		if err := rows.Scan(&tc.Title, &tc.Description, &steps, &tc.ExpectedResult, &priority); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &tc.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps: %w", err)
		}
		tc.Priority = testcase.ParsePriority(priority)
		run.Cases = append(run.Cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cases: %w", err)
	}
	return run, nil
}

// SavePublished records created test issues.
func (s *Store) SavePublished(ctx context.Context, tests []PublishedTest) error {
	if len(tests) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range tests {
		t := &tests[i]
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO published_tests (run_id, story_key, test_key, title, project, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.RunID, t.StoryKey, t.TestKey, t.Title, t.Project, formatTime(t.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert published test %s: %w", t.TestKey, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			t.ID = id
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit published tests: %w", err)
	}
	return nil
}

// ListPublished returns tests created for a story, oldest first.
func (s *Store) ListPublished(ctx context.Context, storyKey string) ([]PublishedTest, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, run_id, story_key, test_key, title, project, created_at
		FROM published_tests WHERE story_key = ? ORDER BY id`, storyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query published tests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tests := []PublishedTest{}
	for rows.Next() {
		var t PublishedTest
		var created string
		if err := rows.Scan(&t.ID, &t.RunID, &t.StoryKey, &t.TestKey, &t.Title, &t.Project, &created); err != nil {
			return nil, fmt.Errorf("failed to scan published test: %w", err)
		}
		t.CreatedAt = parseTime(created)
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate published tests: %w", err)
	}
	return tests, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var created string
	err := row.Scan(&run.ID, &run.IssueKey, &run.Path, &run.Model, &run.ModelError, &run.CaseCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = parseTime(created)
	return &run, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
