package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/InsightCrawler/internal/browser"
	"github.com/TobiSchelling/InsightCrawler/internal/config"
	"github.com/TobiSchelling/InsightCrawler/internal/database"
	"github.com/TobiSchelling/InsightCrawler/internal/logging"
	"github.com/TobiSchelling/InsightCrawler/internal/pipeline"
	"github.com/TobiSchelling/InsightCrawler/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = slog.Default()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "insightcrawler",
	Short:   "Scrape sector insights into a JSON document",
	Long:    "InsightCrawler walks the sector listings of an insights site, scrapes every linked article and writes the records as one JSON document.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(os.Stderr, "INFO", verbose)
		slog.SetDefault(logger)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger = logging.New(os.Stderr, cfg.Logging.Level, verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("insightcrawler", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/insightcrawler/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the site, sectors and selectors.")
		return nil
	},
}

// --- run command ---

var (
	dryRun  bool
	sectors []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: discover -> collect -> write output -> record",
	RunE: func(cmd *cobra.Command, args []string) error {
		selected, err := cfg.SectorsByID(sectors)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := pipeline.Options{Sectors: selected, Logger: logger}
		if !dryRun {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			opts.DB = db
		}

		eng := browser.New(browser.Config{
			RemoteURL:         cfg.Browser.Remote,
			Bin:               cfg.Browser.Bin,
			Headless:          cfg.Browser.Headless,
			Stealth:           cfg.Browser.Stealth,
			ResourceBlocking:  cfg.Browser.ResourceBlocking,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			Logger:            logger,
		})
		startURL := cfg.Site.BaseURL
		if len(selected) > 0 {
			startURL += cfg.Site.FilterPrefix + selected[0].Filter
		}
		if err := eng.Start(ctx, startURL); err != nil {
			return fmt.Errorf("starting browser: %w", err)
		}
		defer func() {
			if err := eng.Shutdown(); err != nil {
				logger.Warn("browser shutdown failed", "err", err)
			}
		}()

		pipe := pipeline.New(cfg, eng, opts)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(ctx)
		} else {
			result = pipe.Run(ctx)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if dryRun {
			for _, s := range result.Links.Sectors {
				fmt.Printf("  %-28s %d links\n", s.Sector, len(s.Links))
			}
		}

		if err := result.Err(); err != nil {
			if pipeline.IsInterrupted(err) {
				return fmt.Errorf("run interrupted, no output written: %w", err)
			}
			return err
		}

		if !dryRun {
			fmt.Printf("\nPipeline complete! Run 'insightcrawler failures %s' to see failed links.\n", result.RunID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Discover links without scraping articles")
	runCmd.Flags().StringSliceVarP(&sectors, "sector", "s", nil, "Restrict the run to these sector ids (repeatable)")
}

// --- history commands ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Site: %s (%d sectors)\n", cfg.Site.BaseURL, len(cfg.Site.Sectors))
		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.Runs)
		if stats.LastRunID != "" {
			fmt.Printf("  Last: %s (%s)\n", stats.LastRunFinish, stats.LastRunID)
		}
		fmt.Println("\nInsights:")
		fmt.Printf("  Scraped: %d\n", stats.Insights)
		fmt.Printf("  Unique URLs: %d\n", stats.UniqueURLs)
		fmt.Printf("  Failed links: %d\n", stats.FailedLinks)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.GetRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded. Use 'insightcrawler run' to start one.")
			return nil
		}

		for _, r := range runs {
			fmt.Printf("%s  %s  sectors=%d links=%d records=%d failures=%d\n",
				r.ID, r.FinishedAt, r.SectorCount, r.LinkCount, r.RecordCount, r.FailureCount)
		}
		return nil
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures [run-id]",
	Short: "List failed links of a run (default: the last run)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var run *database.Run
		if len(args) == 1 {
			run, err = db.GetRun(args[0])
		} else {
			run, err = db.GetLastRun()
		}
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run not found")
		}

		failures, err := db.GetRunFailures(run.ID)
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			fmt.Printf("Run %s had no failed links.\n", run.ID)
			return nil
		}

		fmt.Printf("Run %s: %d failed links\n", run.ID, len(failures))
		for _, f := range failures {
			fmt.Printf("  [%s #%d] %s\n", f.Sector, f.Index, f.URL)
			if f.Reason != "" {
				fmt.Printf("      %s\n", f.Reason)
			}
		}
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server to browse runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		return server.Serve(db, servePort, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "insightcrawler.db"))
}
