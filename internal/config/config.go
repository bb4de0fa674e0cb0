package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"pydigest/internal/rank"
	"pydigest/internal/types"
)

type Config struct {
	Digest   DigestConfig       `toml:"digest"`
	Storage  StorageConfig      `toml:"storage"`
	Cache    CacheConfig        `toml:"cache"`
	Oracle   OracleConfig       `toml:"oracle"`
	Search   SearchConfig       `toml:"search"`
	Dedupe   DedupeConfig       `toml:"dedupe"`
	Prompts  PromptsConfig      `toml:"prompts"`
	Sources  []SourceConfig     `toml:"sources"`
	Keywords []string           `toml:"keywords"`
	Targets  map[string]Target  `toml:"targets"`
}

type DigestConfig struct {
	Name            string `toml:"name"`
	Quota           int    `toml:"quota"`
	LookbackHours   int    `toml:"lookback_hours"`
	MaxPerSource    int    `toml:"max_per_source"`
	TitleMaxLen     int    `toml:"title_max_len"`
	SummaryMaxLen   int    `toml:"summary_max_len"`
	Language        string `toml:"language"`
	RankTies        string `toml:"rank_ties"`
	Concurrency     int    `toml:"concurrency"`
	RunBudget       string `toml:"run_budget"`
	Interval        string `toml:"interval"`
	RunOnce         bool   `toml:"run_once"`
	ExtractFullText bool   `toml:"extract_full_text"`
}

type StorageConfig struct {
	Type      string `toml:"type"`
	Path      string `toml:"path"`
	Retention string `toml:"retention"`
}

type CacheConfig struct {
	Backend string `toml:"backend"`
	TTL     string `toml:"ttl"`
	Addr    string `toml:"addr"`
}

type OracleConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Timeout     string  `toml:"timeout"`
	Temperature float64 `toml:"temperature"`
	EmbedModel  string  `toml:"embed_model"`
}

type SearchConfig struct {
	APIKeyEnv string `toml:"api_key_env"`
	CSEIDEnv  string `toml:"cse_id_env"`
	Endpoint  string `toml:"endpoint"`
}

type DedupeConfig struct {
	TitleThreshold    float64 `toml:"title_threshold"`
	Semantic          bool    `toml:"semantic"`
	SemanticThreshold float64 `toml:"semantic_threshold"`
}

type PromptsConfig struct {
	FilterSystem     string `toml:"filter_system"`
	FilterCriteria   string `toml:"filter_criteria"`
	CopywriterSystem string `toml:"copywriter_system"`
}

type SourceConfig struct {
	ID      string `toml:"id"`
	Kind    string `toml:"kind"`
	URL     string `toml:"url"`
	Keyword string `toml:"keyword"`
	Tier    int    `toml:"tier"`
	Enabled bool   `toml:"enabled"`
}

type Target struct {
	Type     string                 `toml:"type"`
	Enabled  bool                   `toml:"enabled"`
	Settings map[string]interface{} `toml:"settings"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Digest.Name == "" {
		config.Digest.Name = "pydigest"
	}

	if config.Digest.Quota == 0 {
		config.Digest.Quota = 8
	}

	if config.Digest.LookbackHours == 0 {
		config.Digest.LookbackHours = 168
	}

	if config.Digest.MaxPerSource == 0 {
		config.Digest.MaxPerSource = 20
	}

	if config.Digest.TitleMaxLen == 0 {
		config.Digest.TitleMaxLen = 100
	}

	if config.Digest.SummaryMaxLen == 0 {
		config.Digest.SummaryMaxLen = 350
	}

	if config.Digest.Concurrency == 0 {
		config.Digest.Concurrency = 5
	}

	if config.Digest.Language == "" {
		config.Digest.Language = "ru"
	}

	if _, err := language.Parse(config.Digest.Language); err != nil {
		return fmt.Errorf("invalid language tag %q: %w", config.Digest.Language, err)
	}

	if config.Digest.RankTies == "" {
		config.Digest.RankTies = "newest"
	}

	if _, err := rank.ParseOrder(config.Digest.RankTies); err != nil {
		return fmt.Errorf("invalid rank_ties: %w", err)
	}

	if config.Digest.RunBudget == "" {
		config.Digest.RunBudget = "15m"
	}

	if _, err := time.ParseDuration(config.Digest.RunBudget); err != nil {
		return fmt.Errorf("invalid run budget: %w", err)
	}

	if config.Digest.Interval == "" {
		config.Digest.Interval = "168h"
	}

	if _, err := time.ParseDuration(config.Digest.Interval); err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	if config.Storage.Type == "" {
		config.Storage.Type = "sqlite"
	}

	if config.Storage.Path == "" {
		config.Storage.Path = "./pydigest.db"
	}

	if config.Storage.Retention == "" {
		config.Storage.Retention = "2160h"
	}

	if _, err := time.ParseDuration(config.Storage.Retention); err != nil {
		return fmt.Errorf("invalid storage retention: %w", err)
	}

	if config.Cache.Backend == "" {
		config.Cache.Backend = "memory"
	}

	if config.Cache.TTL == "" {
		config.Cache.TTL = "1h"
	}

	if _, err := time.ParseDuration(config.Cache.TTL); err != nil {
		return fmt.Errorf("invalid cache ttl: %w", err)
	}

	if config.Oracle.Provider == "" {
		config.Oracle.Provider = "openai"
	}

	if config.Oracle.Timeout == "" {
		config.Oracle.Timeout = "60s"
	}

	if _, err := time.ParseDuration(config.Oracle.Timeout); err != nil {
		return fmt.Errorf("invalid oracle timeout: %w", err)
	}

	if config.Oracle.Temperature == 0 {
		config.Oracle.Temperature = 0.3
	}

	if config.Search.Endpoint == "" {
		config.Search.Endpoint = "https://www.googleapis.com/customsearch/v1"
	}

	if config.Dedupe.TitleThreshold == 0 {
		config.Dedupe.TitleThreshold = 0.8
	}

	if config.Dedupe.SemanticThreshold == 0 {
		config.Dedupe.SemanticThreshold = 0.92
	}

	enabledSources := 0
	for i := range config.Sources {
		src := &config.Sources[i]
		if src.Tier == 0 {
			src.Tier = 3
		}
		if src.Tier < 1 || src.Tier > 4 {
			return fmt.Errorf("source %s: tier must be 1-4, got %d", src.ID, src.Tier)
		}
		switch types.SourceKind(src.Kind) {
		case types.SourceRSS:
			if src.URL == "" {
				return fmt.Errorf("rss source %s: url is required", src.ID)
			}
		case types.SourceSearch:
			if src.Keyword == "" {
				return fmt.Errorf("search source %s: keyword is required", src.ID)
			}
		default:
			return fmt.Errorf("source %s: unknown kind %q", src.ID, src.Kind)
		}
		if src.Enabled {
			enabledSources++
		}
	}
	if enabledSources == 0 && len(config.Keywords) == 0 {
		return fmt.Errorf("at least one source or keyword must be configured")
	}

	return nil
}

// ActiveSources converts the enabled source entries into the domain
// shape, preserving config order. Top-level keywords are expanded into
// search sources at tier 2.
func (c *Config) ActiveSources() []types.SourceConfig {
	out := make([]types.SourceConfig, 0, len(c.Sources)+len(c.Keywords))
	for _, src := range c.Sources {
		if !src.Enabled {
			continue
		}
		out = append(out, types.SourceConfig{
			ID:      src.ID,
			Kind:    types.SourceKind(src.Kind),
			URL:     src.URL,
			Keyword: src.Keyword,
			Tier:    src.Tier,
			Enabled: true,
		})
	}
	for _, kw := range c.Keywords {
		out = append(out, types.SourceConfig{
			ID:      "search:" + kw,
			Kind:    types.SourceSearch,
			Keyword: kw,
			Tier:    2,
			Enabled: true,
		})
	}
	return out
}

// Durations below are validated in validateConfig, so parse errors are
// impossible here.

func (c *Config) RunBudget() time.Duration {
	d, _ := time.ParseDuration(c.Digest.RunBudget)
	return d
}

func (c *Config) Interval() time.Duration {
	d, _ := time.ParseDuration(c.Digest.Interval)
	return d
}

func (c *Config) OracleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Oracle.Timeout)
	return d
}

func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Digest.LookbackHours) * time.Hour
}

func (c *Config) Retention() time.Duration {
	d, _ := time.ParseDuration(c.Storage.Retention)
	return d
}
