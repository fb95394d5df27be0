package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    sector_count INTEGER DEFAULT 0,
    link_count INTEGER DEFAULT 0,
    record_count INTEGER DEFAULT 0,
    failure_count INTEGER DEFAULT 0,
    output_path TEXT
);

CREATE TABLE IF NOT EXISTS sector_links (
    run_id TEXT NOT NULL REFERENCES runs(id),
    sector TEXT NOT NULL,
    position INTEGER NOT NULL,
    link_count INTEGER DEFAULT 0,
    timed_out INTEGER DEFAULT 0,
    PRIMARY KEY (run_id, sector)
);

CREATE TABLE IF NOT EXISTS insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    sector_name TEXT NOT NULL,
    author TEXT,
    author_role TEXT,
    entity TEXT,
    vertical TEXT,
    title TEXT,
    views INTEGER DEFAULT 0,
    date TEXT,
    text TEXT
);

CREATE TABLE IF NOT EXISTS failed_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    position INTEGER NOT NULL,
    sector TEXT NOT NULL,
    link_index INTEGER NOT NULL,
    url TEXT NOT NULL,
    reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_insights_run ON insights(run_id);
CREATE INDEX IF NOT EXISTS idx_insights_url ON insights(url);
CREATE INDEX IF NOT EXISTS idx_failed_links_run ON failed_links(run_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
