package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"pydigest/internal/cache"
	"pydigest/internal/compose"
	"pydigest/internal/dedupe"
	"pydigest/internal/filter"
	"pydigest/internal/oracle"
	"pydigest/internal/pipeline"
	"pydigest/internal/rank"
	"pydigest/internal/runner"
	"pydigest/internal/sources"
	"pydigest/internal/storage"
	_ "pydigest/internal/storage/sqlite"
	"pydigest/internal/targets"
)

// LoadAndBuild reads the config file and assembles the whole runner:
// storage, cache, oracle adapters, fetch clients, pipeline stages and
// output targets.
func LoadAndBuild(path string) (*runner.Runner, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(cfg)
}

func Build(cfg *Config) (*runner.Runner, error) {
	store, err := storage.New(cfg.Storage.Type, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	feedCache, err := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.CacheTTL(),
		Addr:    cfg.Cache.Addr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	classifier, composer, embedder, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var extractor *sources.Extractor
	if cfg.Digest.ExtractFullText {
		extractor = sources.NewExtractor(httpClient)
	}

	searchKeyEnv := cfg.Search.APIKeyEnv
	if searchKeyEnv == "" {
		searchKeyEnv = "GOOGLE_API_KEY"
	}
	searchCSEEnv := cfg.Search.CSEIDEnv
	if searchCSEEnv == "" {
		searchCSEEnv = "GOOGLE_CSE_ID"
	}

	fetcher := sources.NewFetcher(
		sources.FetcherConfig{
			Lookback:     cfg.Lookback(),
			MaxPerSource: cfg.Digest.MaxPerSource,
			Concurrency:  cfg.Digest.Concurrency,
		},
		sources.NewRSSClient(httpClient, feedCache),
		sources.NewSearchClient(cfg.Search.Endpoint, os.Getenv(searchKeyEnv), os.Getenv(searchCSEEnv), httpClient),
		extractor,
	)

	dedupeOpts := []dedupe.Option{}
	if cfg.Dedupe.Semantic && embedder != nil {
		dedupeOpts = append(dedupeOpts, dedupe.WithSemantic(embedder, cfg.Dedupe.SemanticThreshold))
	}
	deduplicator := dedupe.New(cfg.Dedupe.TitleThreshold, dedupeOpts...)

	relevance := filter.New(classifier, filter.Config{
		Criteria: oracle.Criteria{
			Keywords:     cfg.Keywords,
			Audience:     cfg.Prompts.FilterCriteria,
			SystemPrompt: cfg.Prompts.FilterSystem,
		},
		Concurrency: cfg.Digest.Concurrency,
		Timeout:     cfg.OracleTimeout(),
	})

	composerStage := compose.New(composer, compose.Config{
		Constraints: oracle.Constraints{
			TitleMaxLen:   cfg.Digest.TitleMaxLen,
			SummaryMaxLen: cfg.Digest.SummaryMaxLen,
			Language:      cfg.Digest.Language,
		},
		Concurrency: cfg.Digest.Concurrency,
		Timeout:     cfg.OracleTimeout(),
	})

	tieOrder, _ := rank.ParseOrder(cfg.Digest.RankTies)

	pipe := pipeline.New(
		pipeline.Config{
			Sources:  cfg.ActiveSources(),
			Quota:    cfg.Digest.Quota,
			TieOrder: tieOrder,
			Budget:   cfg.RunBudget(),
		},
		fetcher, deduplicator, relevance, composerStage,
	)

	targetList, err := buildTargets(cfg, store)
	if err != nil {
		return nil, err
	}

	return runner.New(runner.Config{
		Name:      cfg.Digest.Name,
		Pipeline:  pipe,
		Store:     store,
		Targets:   targetList,
		Interval:  cfg.Interval(),
		Retention: cfg.Retention(),
		RunOnce:   cfg.Digest.RunOnce,
	}), nil
}

func buildOracle(cfg *Config) (oracle.Classifier, oracle.Composer, oracle.Embedder, error) {
	switch cfg.Oracle.Provider {
	case "openai":
		keyEnv := cfg.Oracle.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "DEEPSEEK_API_KEY"
		}
		baseURL := cfg.Oracle.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com/v1"
		}

		o, err := oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			Model:            cfg.Oracle.Model,
			BaseURL:          baseURL,
			APIKey:           os.Getenv(keyEnv),
			Temperature:      cfg.Oracle.Temperature,
			CopywriterSystem: cfg.Prompts.CopywriterSystem,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		// OpenAI-compatible endpoints expose no embeddings we rely on;
		// semantic dedupe requires the ollama provider.
		return o, o, nil, nil

	case "ollama":
		o, err := oracle.NewOllamaOracle(cfg.Oracle.Model, cfg.Oracle.EmbedModel, cfg.Prompts.CopywriterSystem)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		return o, o, o, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported oracle provider: %s", cfg.Oracle.Provider)
	}
}

func buildTargets(cfg *Config, store storage.StorageInterface) ([]targets.Target, error) {
	var out []targets.Target
	for name, tc := range cfg.Targets {
		if !tc.Enabled {
			continue
		}
		switch tc.Type {
		case "markdown":
			dir, _ := tc.Settings["dir"].(string)
			out = append(out, targets.NewMarkdownTarget(name, dir))
		case "feed":
			port, _ := tc.Settings["port"].(string)
			title, _ := tc.Settings["title"].(string)
			link, _ := tc.Settings["link"].(string)
			out = append(out, targets.NewFeedTarget(name, targets.FeedConfig{
				Port:  port,
				Title: title,
				Link:  link,
			}, store.Posts()))
		default:
			return nil, fmt.Errorf("target %s: unknown type %q", name, tc.Type)
		}
	}
	return out, nil
}
