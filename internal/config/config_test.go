package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydigest/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
[[sources]]
id = "blog"
kind = "rss"
url = "https://example.com/feed.xml"
enabled = true
`))
	require.NoError(t, err)

	assert.Equal(t, "pydigest", cfg.Digest.Name)
	assert.Equal(t, 8, cfg.Digest.Quota)
	assert.Equal(t, 168, cfg.Digest.LookbackHours)
	assert.Equal(t, 20, cfg.Digest.MaxPerSource)
	assert.Equal(t, 100, cfg.Digest.TitleMaxLen)
	assert.Equal(t, 350, cfg.Digest.SummaryMaxLen)
	assert.Equal(t, "ru", cfg.Digest.Language)
	assert.Equal(t, "newest", cfg.Digest.RankTies)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "2160h", cfg.Storage.Retention)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "openai", cfg.Oracle.Provider)
	assert.Equal(t, 0.8, cfg.Dedupe.TitleThreshold)
	assert.Equal(t, 3, cfg.Sources[0].Tier)
}

func TestLoadRejectsInvalidSourceKind(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[[sources]]
id = "bad"
kind = "carrier-pigeon"
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoadRejectsRSSWithoutURL(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[[sources]]
id = "feed"
kind = "rss"
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestLoadRejectsOutOfRangeTier(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[[sources]]
id = "feed"
kind = "rss"
url = "https://example.com/feed.xml"
tier = 9
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier must be 1-4")
}

func TestLoadRejectsEmptySourceSet(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[digest]
name = "empty"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one source or keyword")
}

func TestLoadRejectsInvalidLanguage(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[digest]
language = "not a language tag"

[[sources]]
id = "feed"
kind = "rss"
url = "https://example.com/feed.xml"
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid language tag")
}

func TestLoadRejectsInvalidRankTies(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
[digest]
rank_ties = "sideways"

[[sources]]
id = "feed"
kind = "rss"
url = "https://example.com/feed.xml"
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank_ties")
}

func TestActiveSourcesExpandsKeywords(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
keywords = ["Python release", "PEP"]

[[sources]]
id = "blog"
kind = "rss"
url = "https://example.com/feed.xml"
tier = 1
enabled = true

[[sources]]
id = "disabled-blog"
kind = "rss"
url = "https://example.com/other.xml"
enabled = false
`))
	require.NoError(t, err)

	srcs := cfg.ActiveSources()
	require.Len(t, srcs, 3)

	assert.Equal(t, "blog", srcs[0].ID)
	assert.Equal(t, types.SourceRSS, srcs[0].Kind)

	assert.Equal(t, "search:Python release", srcs[1].ID)
	assert.Equal(t, types.SourceSearch, srcs[1].Kind)
	assert.Equal(t, "Python release", srcs[1].Keyword)
	assert.Equal(t, 2, srcs[1].Tier)

	assert.Equal(t, "search:PEP", srcs[2].ID)
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
[digest]
run_budget = "10m"
interval = "24h"
lookback_hours = 72

[oracle]
timeout = "90s"

[[sources]]
id = "blog"
kind = "rss"
url = "https://example.com/feed.xml"
enabled = true
`))
	require.NoError(t, err)

	assert.Equal(t, "10m0s", cfg.RunBudget().String())
	assert.Equal(t, "24h0m0s", cfg.Interval().String())
	assert.Equal(t, "1m30s", cfg.OracleTimeout().String())
	assert.Equal(t, "72h0m0s", cfg.Lookback().String())
}
