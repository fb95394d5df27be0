// Package server serves the run history as a small read-only web UI.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/InsightCrawler/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing scrape runs.
type Server struct {
	db     *database.DB
	pages  map[string]*template.Template
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates a new Server.
func New(db *database.DB, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"excerpt":  excerpt,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not
	// collide between pages.
	pageNames := []string{"index.html", "run.html", "insight.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux(), logger: logger}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/run/", s.handleRun)
	s.mux.HandleFunc("/insight/", s.handleInsight)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	runs, err := s.db.GetRuns()
	if err != nil {
		s.serverError(w, "listing runs", err)
		return
	}
	stats, err := s.db.GetStats()
	if err != nil {
		s.serverError(w, "reading stats", err)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Runs":  runs,
		"Stats": stats,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/run/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	run, err := s.db.GetRun(id)
	if err != nil {
		s.serverError(w, "reading run", err)
		return
	}
	if run == nil {
		http.NotFound(w, r)
		return
	}

	sectors, err := s.db.GetRunSectors(id)
	if err != nil {
		s.serverError(w, "reading sectors", err)
		return
	}
	insights, err := s.db.GetRunInsights(id)
	if err != nil {
		s.serverError(w, "reading insights", err)
		return
	}
	failures, err := s.db.GetRunFailures(id)
	if err != nil {
		s.serverError(w, "reading failures", err)
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":      run,
		"Sectors":  sectors,
		"Insights": insights,
		"Failures": failures,
	})
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/insight/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	insight, err := s.db.GetInsight(id)
	if err != nil {
		s.serverError(w, "reading insight", err)
		return
	}
	if insight == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "insight.html", map[string]any{
		"Insight": insight,
	})
}

func (s *Server) serverError(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, "err", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Render to a buffer so a template error does not leave a half page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.serverError(w, "rendering "+name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func excerpt(text string, n int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int, logger *slog.Logger) error {
	srv, err := New(db, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	srv.logger.Info("server listening", "url", "http://"+addr)
	return http.ListenAndServe(addr, srv.Handler())
}
