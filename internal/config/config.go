// Package config loads the crawler settings from YAML.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/InsightCrawler/internal/extract"
	"github.com/TobiSchelling/InsightCrawler/internal/models"
)

// DefaultConfigYAML is written by "init" and documents every setting.
//
//go:embed default.yaml
var DefaultConfigYAML []byte

// Config is the full crawler configuration.
type Config struct {
	Site      Site      `yaml:"site"`
	Timeouts  Timeouts  `yaml:"timeouts"`
	Reveal    Reveal    `yaml:"reveal"`
	Selectors Selectors `yaml:"selectors"`
	Browser   Browser   `yaml:"browser"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

// Site is the scraped site and its ordered sectors.
type Site struct {
	BaseURL      string              `yaml:"base_url"`
	FilterPrefix string              `yaml:"filter_prefix"`
	Sectors      []models.SectorSpec `yaml:"sectors"`
}

// Timeouts are the locator wait budgets.
type Timeouts struct {
	Primary   time.Duration `yaml:"primary"`
	Secondary time.Duration `yaml:"secondary"`
}

// Reveal controls the End presses on listing pages.
type Reveal struct {
	Iterations int           `yaml:"iterations"`
	Settle     time.Duration `yaml:"settle"`
	Tag        string        `yaml:"tag"`
}

// Selectors are the XPath location expressions of listing and article pages.
type Selectors struct {
	ListingAnchor string        `yaml:"listing_anchor"`
	Article       extract.Paths `yaml:"article"`
}

// Browser configures the Chrome instance.
type Browser struct {
	Remote            string        `yaml:"remote"`
	Bin               string        `yaml:"bin"`
	Headless          bool          `yaml:"headless"`
	Stealth           bool          `yaml:"stealth"`
	ResourceBlocking  []string      `yaml:"resource_blocking"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
}

// Output names the records document, the optional failures document and
// the history database directory.
type Output struct {
	Path         string `yaml:"path"`
	FailuresPath string `yaml:"failures_path"`
	DataDir      string `yaml:"data_dir"`
}

// Logging sets the log level (debug, info, warn, error).
type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for insightcrawler.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "insightcrawler")
}

// DataDir returns the XDG data directory for insightcrawler.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "insightcrawler")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/insightcrawler/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'insightcrawler init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and validating
// the result. Sectors and selectors are only defaulted by the embedded
// default.yaml, not here.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Site: Site{
			FilterPrefix: "?filters=sectors%3A",
		},
		Timeouts: Timeouts{
			Primary:   5 * time.Second,
			Secondary: 2 * time.Second,
		},
		Reveal: Reveal{
			Iterations: 2,
			Settle:     time.Second,
			Tag:        "body",
		},
		Browser: Browser{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
		},
		Output:  Output{Path: "output.json"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a run cannot do without.
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site.base_url is required"))
	}
	if len(c.Site.Sectors) == 0 {
		errs = append(errs, errors.New("site.sectors must list at least one sector"))
	}
	seen := make(map[string]bool, len(c.Site.Sectors))
	for i, s := range c.Site.Sectors {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("site.sectors[%d].id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("duplicate sector id %q", s.ID))
		}
		seen[s.ID] = true
	}
	if c.Timeouts.Primary <= 0 || c.Timeouts.Secondary <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	if c.Reveal.Iterations < 0 {
		errs = append(errs, errors.New("reveal.iterations must not be negative"))
	}
	if c.Selectors.ListingAnchor == "" {
		errs = append(errs, errors.New("selectors.listing_anchor is required"))
	}
	errs = append(errs, validateArticle(c.Selectors.Article)...)
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}

	return errors.Join(errs...)
}

func validateArticle(p extract.Paths) []error {
	fields := []struct {
		key, value string
	}{
		{"author_section", p.AuthorSection},
		{"author", p.Author},
		{"author_role", p.AuthorRole},
		{"entity_section", p.EntitySection},
		{"entity", p.Entity},
		{"vertical", p.Vertical},
		{"headline_section", p.HeadlineSection},
		{"title", p.Title},
		{"views_and_date", p.ViewsAndDate},
		{"body", p.Body},
	}

	var errs []error
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("selectors.article.%s is required", f.key))
		}
	}
	return errs
}

// SectorsByID returns the configured sectors restricted to ids, keeping
// declaration order. An empty ids list returns every sector.
func (c *Config) SectorsByID(ids []string) ([]models.SectorSpec, error) {
	if len(ids) == 0 {
		return c.Site.Sectors, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var out []models.SectorSpec
	for _, s := range c.Site.Sectors {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("unknown sector %q", id)
	}
	return out, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
