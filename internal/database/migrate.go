package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate brings the history schema up to the latest version.
func migrate(conn *sql.DB) error {
	from, to, err := applyMigrations(conn, migrations)
	if err != nil {
		return err
	}
	if to != from {
		slog.Info("history schema migrated", "from", from, "to", to)
	}
	return nil
}

// applyMigrations runs the steps above the stored user_version in order and
// returns the version found and the version reached. Steps must have
// strictly increasing versions. A failing step leaves the database at the
// last version that committed.
func applyMigrations(conn *sql.DB, steps []Migration) (from, to int, err error) {
	prev := 0
	for _, m := range steps {
		if m.Version <= prev {
			return 0, 0, fmt.Errorf("migration %d (%s) is out of order", m.Version, m.Description)
		}
		prev = m.Version
	}

	from, err = getSchemaVersion(conn)
	if err != nil {
		return 0, 0, err
	}

	to = from
	for _, m := range steps {
		if m.Version <= to {
			continue
		}

		if err := applyStep(conn, m); err != nil {
			return from, to, err
		}
		to = m.Version
	}
	return from, to, nil
}

func applyStep(conn *sql.DB, m Migration) error {
	slog.Debug("applying migration", "version", m.Version, "description", m.Description)

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// user_version is stamped after the commit; the DDL is idempotent, so a
	// crash in between only re-runs the step.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("stamping schema version %d: %w", m.Version, err)
	}
	return nil
}
