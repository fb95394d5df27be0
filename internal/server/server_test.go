package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, nil)
	require.NoError(t, err, "failed to create server")
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func seedRun(t *testing.T, db *database.DB) {
	t.Helper()
	links := models.LinkSet{Sectors: []models.SectorLinks{
		{Sector: "Banks", Links: []string{"https://site/i/1", "https://site/i/2"}},
		{Sector: "Energy", TimedOut: true},
	}}
	rs := models.ResultSet{
		Records: []models.InsightRecord{{
			URL: "https://site/i/1", SectorName: "Banks", Author: "Jane Doe", AuthorRole: "Analyst",
			Entity: "Acme", Vertical: "Equities", Title: "Rates outlook", Views: 12,
			Date: " 01 Jan 2020", Text: "Rates are **rising**.",
		}},
		Failures: []models.LinkFailure{{Sector: "Banks", Index: 1, URL: "https://site/i/2", Reason: "timed out"}},
	}
	run := database.Run{ID: "run-1", StartedAt: "2026-02-06 10:00:00", FinishedAt: "2026-02-06 10:05:00", OutputPath: "output.json"}
	require.NoError(t, db.SaveRun(run, links, rs))
}

func TestIndexRouteEmpty(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := get(t, srv, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs yet")
}

func TestIndexRouteListsRuns(t *testing.T) {
	db := openTestDB(t)
	seedRun(t, db)
	srv := newTestServer(t, db)

	body := get(t, srv, "/").Body.String()
	assert.Contains(t, body, `href="/run/run-1"`)
	assert.Contains(t, body, "1 runs")
}

func TestUnknownPathNotFound(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/nope").Code)
}

func TestRunRoute(t *testing.T) {
	db := openTestDB(t)
	seedRun(t, db)
	srv := newTestServer(t, db)

	rec := get(t, srv, "/run/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, want := range []string{"Rates outlook", "Jane Doe", "no links appeared", "https://site/i/2", "timed out"} {
		assert.Contains(t, body, want)
	}
}

func TestRunRouteNotFound(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/run/missing").Code)
}

func TestRunRouteEmptyRedirects(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	assert.Equal(t, http.StatusFound, get(t, srv, "/run/").Code)
}

func TestInsightRouteRendersMarkdown(t *testing.T) {
	db := openTestDB(t)
	seedRun(t, db)
	insights, err := db.GetRunInsights("run-1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	srv := newTestServer(t, db)

	rec := get(t, srv, fmt.Sprintf("/insight/%d", insights[0].ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<strong>rising</strong>")
}

func TestInsightRouteBadID(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	for _, path := range []string{"/insight/abc", "/insight/999"} {
		assert.Equal(t, http.StatusNotFound, get(t, srv, path).Code, path)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))
	assert.Equal(t, http.StatusOK, get(t, srv, "/static/style.css").Code)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("  short  ", 10))
	assert.Equal(t, "abcd…", excerpt("abcdefghij", 4))
}
