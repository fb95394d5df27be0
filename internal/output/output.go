// Package output writes the records of a finished run to disk.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

// DocumentWriter persists one structured value at path.
type DocumentWriter interface {
	WriteDocument(path string, v any) error
}

// FileWriter writes indented JSON, replacing the destination atomically.
type FileWriter struct{}

// WriteDocument implements DocumentWriter.
func (FileWriter) WriteDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

// Sink writes a ResultSet once, at the end of a run.
type Sink struct {
	writer DocumentWriter
	path   string
	// failuresPath is optional; empty disables the failures document.
	failuresPath string
}

// NewSink creates a Sink writing records to path and, when failuresPath is
// set, failed links to failuresPath.
func NewSink(w DocumentWriter, path, failuresPath string) *Sink {
	if w == nil {
		w = FileWriter{}
	}
	return &Sink{writer: w, path: path, failuresPath: failuresPath}
}

// Path returns the records destination.
func (s *Sink) Path() string {
	return s.path
}

// Flush writes the records as a JSON array. Failed links are only written
// when a failures path is configured.
func (s *Sink) Flush(rs models.ResultSet) error {
	records := rs.Records
	if records == nil {
		records = []models.InsightRecord{}
	}
	if err := s.writer.WriteDocument(s.path, records); err != nil {
		return fmt.Errorf("output: write records to %s: %w", s.path, err)
	}

	if s.failuresPath == "" {
		return nil
	}
	failures := rs.Failures
	if failures == nil {
		failures = []models.LinkFailure{}
	}
	if err := s.writer.WriteDocument(s.failuresPath, failures); err != nil {
		return fmt.Errorf("output: write failures to %s: %w", s.failuresPath, err)
	}
	return nil
}
