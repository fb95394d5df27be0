// Package models holds the data passed between the scraping stages.
package models

// SectorSpec is one listing-page sector from configuration.
type SectorSpec struct {
	ID     string `yaml:"id"`
	Filter string `yaml:"filter"`
}

// InsightRecord is one scraped article. The JSON field names are the
// output document's schema.
type InsightRecord struct {
	URL        string `json:"url"`
	SectorName string `json:"sector_name"`
	Author     string `json:"author"`
	AuthorRole string `json:"author_role"`
	Entity     string `json:"entity"`
	Vertical   string `json:"vertical"`
	Title      string `json:"title"`
	Views      int    `json:"views"`
	Date       string `json:"date"`
	Text       string `json:"text"`
}

// LinkFailure identifies a link that could not be scraped in time.
type LinkFailure struct {
	Sector string `json:"sector"`
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// SectorLinks is the discovery result for one sector.
type SectorLinks struct {
	Sector string
	Links  []string
	// TimedOut is set when no anchor ever appeared on the listing page.
	TimedOut bool
}

// LinkSet maps sectors to their discovered links, in sector declaration
// order.
type LinkSet struct {
	Sectors []SectorLinks
}

// Add appends the discovery result for a sector.
func (ls *LinkSet) Add(s SectorLinks) {
	ls.Sectors = append(ls.Sectors, s)
}

// Links returns the links discovered for a sector, or nil.
func (ls *LinkSet) Links(sector string) []string {
	for _, s := range ls.Sectors {
		if s.Sector == sector {
			return s.Links
		}
	}
	return nil
}

// Total returns the number of links across all sectors.
func (ls *LinkSet) Total() int {
	n := 0
	for _, s := range ls.Sectors {
		n += len(s.Links)
	}
	return n
}

// ResultSet is the output of a full collection run.
type ResultSet struct {
	Records  []InsightRecord
	Failures []LinkFailure
}
