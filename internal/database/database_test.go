package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to open test db")
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id, finished string) (Run, models.LinkSet, models.ResultSet) {
	run := Run{ID: id, StartedAt: "2026-02-06 10:00:00", FinishedAt: finished, OutputPath: "output.json"}
	links := models.LinkSet{Sectors: []models.SectorLinks{
		{Sector: "energy", Links: []string{"https://a.com/1", "https://a.com/2"}},
		{Sector: "utilities", TimedOut: true},
	}}
	rs := models.ResultSet{
		Records: []models.InsightRecord{{
			URL: "https://a.com/1", SectorName: "energy", Author: "Jane", AuthorRole: "Analyst",
			Entity: "Acme", Vertical: "Equities", Title: "First", Views: 523, Date: " 03 Mar 2021", Text: "Body",
		}},
		Failures: []models.LinkFailure{{Sector: "energy", Index: 1, URL: "https://a.com/2", Reason: "timeout"}},
	}
	return run, links, rs
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)
	run, links, rs := sampleRun("run-1", "2026-02-06 10:05:00")
	require.NoError(t, db.SaveRun(run, links, rs))

	got, err := db.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.SectorCount)
	assert.Equal(t, 2, got.LinkCount)
	assert.Equal(t, 1, got.RecordCount)
	assert.Equal(t, 1, got.FailureCount)
	assert.Equal(t, "output.json", got.OutputPath)
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetRun("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRunInsightsAndFailures(t *testing.T) {
	db := openTestDB(t)
	run, links, rs := sampleRun("run-1", "2026-02-06 10:05:00")
	require.NoError(t, db.SaveRun(run, links, rs))

	insights, err := db.GetRunInsights("run-1")
	require.NoError(t, err)
	require.Len(t, insights, 1)
	in := insights[0]
	assert.Equal(t, "https://a.com/1", in.URL)
	assert.Equal(t, 523, in.Views)
	assert.Equal(t, " 03 Mar 2021", in.Date)
	assert.Equal(t, "Analyst", in.AuthorRole)

	byID, err := db.GetInsight(in.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "First", byID.Title)

	failures, err := db.GetRunFailures("run-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.Equal(t, "energy", failures[0].Sector)

	sectors, err := db.GetRunSectors("run-1")
	require.NoError(t, err)
	require.Len(t, sectors, 2)
	assert.Equal(t, "energy", sectors[0].Sector)
	assert.Equal(t, 2, sectors[0].LinkCount)
	assert.False(t, sectors[0].TimedOut)
	assert.True(t, sectors[1].TimedOut)
}

func TestGetInsightNotFound(t *testing.T) {
	got, err := openTestDB(t).GetInsight(42)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRunDuplicateIDRollsBack(t *testing.T) {
	db := openTestDB(t)
	run, links, rs := sampleRun("run-1", "2026-02-06 10:05:00")
	require.NoError(t, db.SaveRun(run, links, rs))
	require.Error(t, db.SaveRun(run, links, rs), "duplicate run id")

	insights, err := db.GetRunInsights("run-1")
	require.NoError(t, err)
	assert.Len(t, insights, 1, "the failed save must not leave rows behind")
}

func TestGetRunsOrderAndStats(t *testing.T) {
	db := openTestDB(t)
	for _, r := range []struct{ id, finished string }{
		{"old", "2026-02-05 09:00:00"},
		{"new", "2026-02-06 09:00:00"},
	} {
		run, links, rs := sampleRun(r.id, r.finished)
		require.NoError(t, db.SaveRun(run, links, rs))
	}

	runs, err := db.GetRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID, "newest run first")

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 2, stats.Insights)
	assert.Equal(t, 1, stats.UniqueURLs)
	assert.Equal(t, 2, stats.FailedLinks)
	assert.Equal(t, "new", stats.LastRunID)
}

func TestGetStatsEmpty(t *testing.T) {
	stats, err := openTestDB(t).GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Runs)
	assert.Empty(t, stats.LastRunID)
}
