package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleYAML = `
  article:
    author_section: //author
    author: .//name
    author_role: .//role
    entity_section: //entity
    entity: .//entity-name
    vertical: .//vertical
    headline_section: //headline
    title: .//title
    views_and_date: .//meta
    body: //content
`

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	require.NoError(t, err)

	require.Len(t, cfg.Site.Sectors, 11)
	assert.Equal(t, "consumer_discretionary", cfg.Site.Sectors[0].ID, "sector order not preserved")
	assert.Equal(t, "utilities", cfg.Site.Sectors[10].ID, "sector order not preserved")
	assert.Equal(t, "Health%20Care", cfg.Site.Sectors[4].Filter)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Primary)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Secondary)
	assert.Equal(t, 2, cfg.Reveal.Iterations)
	assert.Equal(t, time.Second, cfg.Reveal.Settle)
	assert.Contains(t, cfg.Selectors.Article.Body, "insight-content__content")
	assert.Equal(t, "output.json", cfg.Output.Path)
	assert.Empty(t, cfg.Output.FailuresPath, "failures document is off by default")
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
site:
  base_url: https://example.com/insights
  sectors:
    - id: energy
      filter: Energy
selectors:
  listing_anchor: //a` + articleYAML + `
timeouts:
  primary: 10s
browser:
  headless: false
`)
	cfg, err := parse(data)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Timeouts.Primary)
	// Defaults should still be set for unspecified fields
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Secondary)
	assert.Equal(t, "?filters=sectors%3A", cfg.Site.FilterPrefix)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, ".//meta", cfg.Selectors.Article.ViewsAndDate)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	const sel = "selectors:\n  listing_anchor: //a" + articleYAML
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no sectors", "site:\n  base_url: https://x\n" + sel, "at least one sector"},
		{"duplicate sector", "site:\n  base_url: https://x\n  sectors: [{id: a}, {id: a}]\n" + sel, "duplicate sector id"},
		{"zero timeout", "site:\n  base_url: https://x\n  sectors: [{id: a}]\n" + sel + "timeouts:\n  secondary: 0s\n", "timeouts must be positive"},
		{"no base url", "site:\n  sectors: [{id: a}]\n" + sel, "base_url is required"},
		{"no article selectors", "site:\n  base_url: https://x\n  sectors: [{id: a}]\nselectors:\n  listing_anchor: //a\n", "selectors.article.author_section is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryMissingArticleSelector(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	require.NoError(t, err)

	cfg.Selectors.Article.Body = ""
	cfg.Selectors.Article.Vertical = "  "
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectors.article.body is required")
	assert.Contains(t, err.Error(), "selectors.article.vertical is required")
	assert.NotContains(t, err.Error(), "selectors.article.title")
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, DefaultConfigYAML, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Site.Sectors)
}

func TestSectorsByID(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	require.NoError(t, err)

	all, err := cfg.SectorsByID(nil)
	require.NoError(t, err)
	assert.Len(t, all, 11)

	// Declaration order wins over argument order.
	some, err := cfg.SectorsByID([]string{"utilities", "energy"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "energy", some[0].ID)
	assert.Equal(t, "utilities", some[1].ID)

	_, err = cfg.SectorsByID([]string{"crypto"})
	assert.Error(t, err)
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	assert.NotEmpty(t, cfg.GetDataDir())

	cfg.Output.DataDir = "/custom/path"
	assert.Equal(t, "/custom/path", cfg.GetDataDir())
}
