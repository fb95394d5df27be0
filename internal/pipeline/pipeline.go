// Package pipeline runs a full scrape: discover links, collect records,
// write the output document and record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/InsightCrawler/internal/collect"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/discover"
	"github.com/TobiSchelling/InsightCrawler/internal/engine"
	"github.com/TobiSchelling/InsightCrawler/internal/extract"
	"github.com/TobiSchelling/InsightCrawler/internal/locate"
	"github.com/TobiSchelling/InsightCrawler/internal/models"
	"github.com/TobiSchelling/InsightCrawler/internal/output"
	"github.com/TobiSchelling/InsightCrawler/internal/tabs"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID     string
	Steps     []StepResult
	Links     models.LinkSet
	Collected *collect.Result
}

// Err returns the first step error, or nil.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Options tune a Pipeline.
type Options struct {
	// Sectors overrides the configured sectors.
	Sectors []models.SectorSpec
	// DB records the run when set.
	DB *database.DB
	// Writer overrides the JSON file writer.
	Writer output.DocumentWriter
	// PollInterval overrides the locator poll interval.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Pipeline orchestrates the discover, collect, flush and record steps.
type Pipeline struct {
	cfg     *config.Config
	eng     engine.Engine
	opts    Options
	loc     *locate.Locator
	sink    *output.Sink
	sectors []models.SectorSpec
	logger  *slog.Logger
}

// New creates a new pipeline driving eng, whose focused context is the
// main context.
func New(cfg *config.Config, eng engine.Engine, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sectors := opts.Sectors
	if sectors == nil {
		sectors = cfg.Site.Sectors
	}
	loc := locate.New()
	if opts.PollInterval > 0 {
		loc.Interval = opts.PollInterval
	}

	return &Pipeline{
		cfg:     cfg,
		eng:     eng,
		opts:    opts,
		loc:     loc,
		sink:    output.NewSink(opts.Writer, cfg.Output.Path, cfg.Output.FailuresPath),
		sectors: sectors,
		logger:  logger,
	}
}

// Run executes the full pipeline. Steps after a failed step are skipped,
// so the output document is only written when every link was processed.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{RunID: uuid.NewString()}
	started := time.Now()
	log := p.logger.With("run", r.RunID)

	tc, err := tabs.New(p.eng)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Discover", Err: err})
		return r
	}

	log.Info("step 1/4: discovering article links", "sectors", len(p.sectors))
	step := p.runDiscover(ctx, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	log.Info("step 2/4: collecting insights", "links", r.Links.Total())
	step = p.runCollect(ctx, tc, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	log.Info("step 3/4: writing output", "path", p.sink.Path())
	step = p.runFlush(r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	if p.opts.DB != nil {
		log.Info("step 4/4: recording run")
		r.Steps = append(r.Steps, p.runRecord(r, started))
	}

	return r
}

// DryRun discovers links without opening any article.
func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{RunID: uuid.NewString()}
	step := p.runDiscover(ctx, r)
	step.Summary = "[dry-run] " + step.Summary
	r.Steps = append(r.Steps, step)
	return r
}

func (p *Pipeline) walker() *discover.Walker {
	return discover.New(p.eng, p.loc, discover.Config{
		BaseURL:      p.cfg.Site.BaseURL,
		FilterPrefix: p.cfg.Site.FilterPrefix,
		AnchorPath:   p.cfg.Selectors.ListingAnchor,
		Timeout:      p.cfg.Timeouts.Primary,
		Reveal: discover.Reveal{
			Iterations: p.cfg.Reveal.Iterations,
			Settle:     p.cfg.Reveal.Settle,
			Tag:        p.cfg.Reveal.Tag,
		},
		Logger: p.logger,
	})
}

func (p *Pipeline) runDiscover(ctx context.Context, r *Result) StepResult {
	links, err := p.walker().DiscoverAll(ctx, p.sectors)
	r.Links = links
	if err != nil {
		return StepResult{Name: "Discover", Err: err}
	}

	empty := 0
	for _, s := range links.Sectors {
		if s.TimedOut {
			empty++
		}
	}
	return StepResult{
		Name:    "Discover",
		Summary: fmt.Sprintf("Found %d links in %d sectors (%d empty)", links.Total(), len(links.Sectors), empty),
	}
}

func (p *Pipeline) runCollect(ctx context.Context, tc *tabs.Controller, r *Result) StepResult {
	ex := extract.New(p.loc, p.cfg.Selectors.Article, extract.Timeouts{
		Primary:   p.cfg.Timeouts.Primary,
		Secondary: p.cfg.Timeouts.Secondary,
	})
	collector := collect.NewCollector(tc, ex, p.logger)

	result, err := collector.Collect(ctx, r.Links)
	r.Collected = result
	if err != nil {
		return StepResult{Name: "Collect", Err: err}
	}
	return StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("Scraped %d of %d links, %d timed out", result.Saved, result.Processed, result.TimedOut),
	}
}

func (p *Pipeline) runFlush(r *Result) StepResult {
	if err := p.sink.Flush(r.Collected.Set); err != nil {
		return StepResult{Name: "Output", Err: err}
	}
	return StepResult{
		Name:    "Output",
		Summary: fmt.Sprintf("Wrote %d records to %s", len(r.Collected.Set.Records), p.sink.Path()),
	}
}

func (p *Pipeline) runRecord(r *Result, started time.Time) StepResult {
	run := database.Run{
		ID:         r.RunID,
		StartedAt:  started.Format(database.TimeLayout),
		FinishedAt: time.Now().Format(database.TimeLayout),
		OutputPath: p.sink.Path(),
	}
	if err := p.opts.DB.SaveRun(run, r.Links, r.Collected.Set); err != nil {
		return StepResult{Name: "Record", Err: fmt.Errorf("saving run: %w", err)}
	}
	return StepResult{Name: "Record", Summary: "Run " + r.RunID + " recorded"}
}

// IsInterrupted reports whether a run stopped because ctx was cancelled.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
