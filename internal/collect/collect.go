// Package collect visits every discovered article and turns it into an
// insight record or a failed link.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
	"github.com/TobiSchelling/InsightCrawler/internal/extract"
	"github.com/TobiSchelling/InsightCrawler/internal/locate"
	"github.com/TobiSchelling/InsightCrawler/internal/models"
	"github.com/TobiSchelling/InsightCrawler/internal/tabs"
)

// Result holds the results of a collection run.
type Result struct {
	Processed int
	Saved     int
	TimedOut  int
	Set       models.ResultSet
}

// Outcome is the result of one link: exactly one of Record and Failure is
// set.
type Outcome struct {
	Record  *models.InsightRecord
	Failure *models.LinkFailure
}

// Collector visits every discovered link in its own tab and extracts one
// record per link.
type Collector struct {
	tabs      *tabs.Controller
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewCollector creates a new insight collector.
func NewCollector(tc *tabs.Controller, ex *extract.Extractor, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{tabs: tc, extractor: ex, logger: logger}
}

// Collect scrapes every link of every sector, sectors in declaration order
// and links in discovery order. Links that time out are recorded as
// failures and the run continues; any other error aborts it.
func (c *Collector) Collect(ctx context.Context, ls models.LinkSet) (*Result, error) {
	r := &Result{}

	for _, sector := range ls.Sectors {
		c.logger.Info("collecting sector", "sector", sector.Sector, "links", len(sector.Links))

		for index, link := range sector.Links {
			out, err := c.ScrapeLink(ctx, sector.Sector, index, link)
			if err != nil {
				return r, err
			}
			r.Processed++

			switch {
			case out.Record != nil:
				r.Set.Records = append(r.Set.Records, *out.Record)
				r.Saved++
				c.logger.Info("link saved", "sector", sector.Sector, "index", index, "url", link)
			case out.Failure != nil:
				r.Set.Failures = append(r.Set.Failures, *out.Failure)
				r.TimedOut++
				c.logger.Warn("link timed out", "sector", sector.Sector, "index", index,
					"url", link, "reason", out.Failure.Reason)
			}
		}
	}

	c.logger.Info("collection complete", "processed", r.Processed, "saved", r.Saved, "timed_out", r.TimedOut)
	return r, nil
}

// ScrapeLink opens link in an isolated tab, extracts its fields and
// restores the main tab. A locator timeout yields a Failure outcome; the
// returned error is reserved for engine failures.
func (c *Collector) ScrapeLink(ctx context.Context, sector string, index int, link string) (Outcome, error) {
	var out Outcome

	err := c.tabs.With(ctx, link, func(doc engine.Queryer) error {
		fields, err := c.extractor.Extract(ctx, doc)

		var te *locate.TimeoutError
		if errors.As(err, &te) {
			out.Failure = &models.LinkFailure{
				Sector: sector,
				Index:  index,
				URL:    link,
				Reason: te.Error(),
			}
			return nil
		}
		if err != nil {
			return err
		}

		out.Record = &models.InsightRecord{
			URL:        link,
			SectorName: sector,
			Author:     fields.Author,
			AuthorRole: fields.AuthorRole,
			Entity:     fields.Entity,
			Vertical:   fields.Vertical,
			Title:      fields.Title,
			Views:      fields.Views,
			Date:       fields.Date,
			Text:       fields.Text,
		}
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("collect: %s #%d: %w", sector, index, err)
	}
	return out, nil
}
