package database

import (
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

// TimeLayout is the format of stored timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// SaveRun stores a finished run with its sector summaries, records and
// failures in one transaction.
func (db *DB) SaveRun(run Run, links models.LinkSet, rs models.ResultSet) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, finished_at, sector_count, link_count, record_count, failure_count, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, len(links.Sectors), links.Total(),
		len(rs.Records), len(rs.Failures), run.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, s := range links.Sectors {
		if _, err := tx.Exec(
			`INSERT INTO sector_links (run_id, sector, position, link_count, timed_out) VALUES (?, ?, ?, ?, ?)`,
			run.ID, s.Sector, i, len(s.Links), s.TimedOut,
		); err != nil {
			return fmt.Errorf("inserting sector %s: %w", s.Sector, err)
		}
	}

	for i, r := range rs.Records {
		if _, err := tx.Exec(
			`INSERT INTO insights (run_id, position, url, sector_name, author, author_role, entity, vertical, title, views, date, text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, r.URL, r.SectorName, r.Author, r.AuthorRole, r.Entity, r.Vertical,
			r.Title, r.Views, r.Date, r.Text,
		); err != nil {
			return fmt.Errorf("inserting insight %s: %w", r.URL, err)
		}
	}

	for i, f := range rs.Failures {
		if _, err := tx.Exec(
			`INSERT INTO failed_links (run_id, position, sector, link_index, url, reason) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, i, f.Sector, f.Index, f.URL, f.Reason,
		); err != nil {
			return fmt.Errorf("inserting failed link %s: %w", f.URL, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, started_at, finished_at, sector_count, link_count, record_count, failure_count, COALESCE(output_path, '')`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SectorCount, &r.LinkCount,
		&r.RecordCount, &r.FailureCount, &r.OutputPath); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns a run by id, or nil when it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetLastRun returns the most recently finished run, or nil.
func (db *DB) GetLastRun() (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRuns returns all runs, most recent first.
func (db *DB) GetRuns() ([]Run, error) {
	rows, err := db.conn.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY finished_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRunSectors returns the sector summaries of a run in declaration order.
func (db *DB) GetRunSectors(runID string) ([]SectorSummary, error) {
	rows, err := db.conn.Query(
		`SELECT sector, link_count, timed_out FROM sector_links WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SectorSummary
	for rows.Next() {
		var s SectorSummary
		if err := rows.Scan(&s.Sector, &s.LinkCount, &s.TimedOut); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const insightColumns = `id, run_id, url, sector_name, COALESCE(author, ''), COALESCE(author_role, ''),
	COALESCE(entity, ''), COALESCE(vertical, ''), COALESCE(title, ''), views, COALESCE(date, ''), COALESCE(text, '')`

func scanInsight(row interface{ Scan(...any) error }) (*Insight, error) {
	var i Insight
	if err := row.Scan(&i.ID, &i.RunID, &i.URL, &i.SectorName, &i.Author, &i.AuthorRole,
		&i.Entity, &i.Vertical, &i.Title, &i.Views, &i.Date, &i.Text); err != nil {
		return nil, err
	}
	return &i, nil
}

// GetRunInsights returns the records of a run in collection order.
func (db *DB) GetRunInsights(runID string) ([]Insight, error) {
	rows, err := db.conn.Query(`SELECT `+insightColumns+` FROM insights WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Insight
	for rows.Next() {
		i, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

// GetInsight returns one stored record, or nil.
func (db *DB) GetInsight(id int64) (*Insight, error) {
	i, err := scanInsight(db.conn.QueryRow(`SELECT `+insightColumns+` FROM insights WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

// GetRunFailures returns the failed links of a run in the order they
// failed.
func (db *DB) GetRunFailures(runID string) ([]models.LinkFailure, error) {
	rows, err := db.conn.Query(
		`SELECT sector, link_index, url, COALESCE(reason, '') FROM failed_links WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LinkFailure
	for rows.Next() {
		var f models.LinkFailure
		if err := rows.Scan(&f.Sector, &f.Index, &f.URL, &f.Reason); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetStats returns aggregate statistics across all runs.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM insights", &s.Insights},
		{"SELECT COUNT(DISTINCT url) FROM insights", &s.UniqueURLs},
		{"SELECT COUNT(*) FROM failed_links", &s.FailedLinks},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	last, err := db.GetLastRun()
	if err != nil {
		return nil, err
	}
	if last != nil {
		s.LastRunID = last.ID
		s.LastRunFinish = last.FinishedAt
	}
	return s, nil
}
