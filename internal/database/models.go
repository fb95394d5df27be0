package database

// Run is one completed scrape run.
type Run struct {
	ID           string
	StartedAt    string
	FinishedAt   string
	SectorCount  int
	LinkCount    int
	RecordCount  int
	FailureCount int
	OutputPath   string
}

// SectorSummary is the discovery outcome of one sector in a run.
type SectorSummary struct {
	Sector    string
	LinkCount int
	TimedOut  bool
}

// Insight is a stored InsightRecord.
type Insight struct {
	ID         int64
	RunID      string
	URL        string
	SectorName string
	Author     string
	AuthorRole string
	Entity     string
	Vertical   string
	Title      string
	Views      int
	Date       string
	Text       string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Runs          int
	Insights      int
	UniqueURLs    int
	FailedLinks   int
	LastRunID     string
	LastRunFinish string
}
