// Package persistence stores generation runs and published tests in SQLite.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 2

// initializeSchemaWithMigrations ensures the database schema is at the current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Empty database: create the current schema directly.
	if currentVersion == 0 {
		return createSchema(db)
	}
	if currentVersion == CurrentSchemaVersion {
		return nil
	}
	if currentVersion > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, CurrentSchemaVersion)
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

// runMigrations applies database migrations from current version to target version.
func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	switch version {
	case 2:
		return migrateToVersion2(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion2 adds the published_tests table.
func migrateToVersion2(db *sql.DB) error {
	_, err := db.Exec(publishedTestsTable)
	if err != nil {
		return fmt.Errorf("failed to create published_tests: %w", err)
	}
	_, err = db.Exec(publishedTestsIndex)
	return err
}

const runsTable = `CREATE TABLE IF NOT EXISTS generation_runs (
	id TEXT PRIMARY KEY,
	issue_key TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	model_error TEXT NOT NULL DEFAULT '',
	case_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
)`

const casesTable = `CREATE TABLE IF NOT EXISTS generated_cases (
	run_id TEXT NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	steps_json TEXT NOT NULL DEFAULT '[]',
	expected_result TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'Medium',
	PRIMARY KEY (run_id, position)
)`

const publishedTestsTable = `CREATE TABLE IF NOT EXISTS published_tests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL DEFAULT '',
	story_key TEXT NOT NULL,
	test_key TEXT NOT NULL,
	title TEXT NOT NULL,
	project TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
)`

const publishedTestsIndex = `CREATE INDEX IF NOT EXISTS idx_published_story ON published_tests(story_key)`

// createSchema creates all tables at CurrentSchemaVersion.
func createSchema(db *sql.DB) error {
	statements := []string{
		runsTable,
		`CREATE INDEX IF NOT EXISTS idx_runs_issue ON generation_runs(issue_key, created_at)`,
		casesTable,
		publishedTestsTable,
		publishedTestsIndex,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return setSchemaVersion(db, CurrentSchemaVersion)
}

// setSchemaVersion records the current schema version.
func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
