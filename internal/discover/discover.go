// Package discover walks sector listing pages and harvests article links.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TobiSchelling/InsightCrawler/internal/engine"
	"github.com/TobiSchelling/InsightCrawler/internal/locate"
	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

// Reveal controls the simulated End presses that make a listing page load
// more items.
type Reveal struct {
	Iterations int
	Settle     time.Duration
	Tag        string
}

// Config configures a Walker.
type Config struct {
	BaseURL      string
	FilterPrefix string
	// AnchorPath matches the article anchors of a listing page.
	AnchorPath string
	Timeout    time.Duration
	Reveal     Reveal
	Logger     *slog.Logger
}

// Walker discovers the article links of each sector, one sector at a time.
type Walker struct {
	eng engine.Engine
	loc *locate.Locator
	cfg Config
}

// New creates a Walker.
func New(eng engine.Engine, loc *locate.Locator, cfg Config) *Walker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Reveal.Tag == "" {
		cfg.Reveal.Tag = "body"
	}
	return &Walker{eng: eng, loc: loc, cfg: cfg}
}

// ListingURL returns the listing page of a sector.
func (w *Walker) ListingURL(s models.SectorSpec) string {
	return w.cfg.BaseURL + w.cfg.FilterPrefix + s.Filter
}

// Discover loads the sector's listing page in the focused context, reveals
// more content and returns the anchor targets in document order. A listing
// where no anchor appears within the timeout is returned as an empty,
// TimedOut sector rather than an error.
func (w *Walker) Discover(ctx context.Context, s models.SectorSpec) (models.SectorLinks, error) {
	result := models.SectorLinks{Sector: s.ID}
	listing := w.ListingURL(s)

	if err := w.eng.Navigate(ctx, listing); err != nil {
		return result, fmt.Errorf("discover: navigate %s: %w", listing, err)
	}

	for i := 0; i < w.cfg.Reveal.Iterations; i++ {
		if err := w.eng.SimulateKeyEnd(w.cfg.Reveal.Tag); err != nil {
			return result, fmt.Errorf("discover: reveal on %s: %w", listing, err)
		}
		if err := sleep(ctx, w.cfg.Reveal.Settle); err != nil {
			return result, err
		}
	}

	anchors, err := w.loc.FindAll(ctx, w.eng.Document(), w.cfg.AnchorPath, w.cfg.Timeout)
	if locate.IsTimeout(err) {
		w.cfg.Logger.Warn("no article links appeared", "sector", s.ID, "url", listing, "wait", w.cfg.Timeout)
		result.TimedOut = true
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("discover: %s: %w", s.ID, err)
	}

	for _, a := range anchors {
		href, err := a.Attribute("href")
		if err != nil {
			return result, fmt.Errorf("discover: read href in %s: %w", s.ID, err)
		}
		if href == "" {
			w.cfg.Logger.Debug("skipping anchor without href", "sector", s.ID)
			continue
		}
		result.Links = append(result.Links, href)
	}
	return result, nil
}

// DiscoverAll discovers every sector in declaration order.
func (w *Walker) DiscoverAll(ctx context.Context, sectors []models.SectorSpec) (models.LinkSet, error) {
	var ls models.LinkSet
	for _, s := range sectors {
		sl, err := w.Discover(ctx, s)
		if err != nil {
			return ls, err
		}
		w.cfg.Logger.Info("links in sector", "sector", s.ID, "count", len(sl.Links))
		ls.Add(sl)
	}
	return ls, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
