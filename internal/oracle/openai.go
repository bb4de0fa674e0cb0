package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIOracle talks to any OpenAI-compatible chat endpoint (DeepSeek,
// OpenAI itself) through langchaingo. It implements both Classifier
// and Composer.
type OpenAIOracle struct {
	llm           *openai.LLM
	model         string
	temperature   float64
	composeSystem string
}

type OpenAIConfig struct {
	Model            string
	BaseURL          string
	APIKey           string
	Temperature      float64
	CopywriterSystem string
}

func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle API key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	composeSystem := cfg.CopywriterSystem
	if composeSystem == "" {
		composeSystem = defaultCopywriterSystem
	}

	return &OpenAIOracle{
		llm:           llm,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		composeSystem: composeSystem,
	}, nil
}

func (o *OpenAIOracle) Classify(ctx context.Context, items []Item, criteria Criteria) ([]Verdict, error) {
	system := criteria.SystemPrompt
	if system == "" {
		system = defaultFilterSystem
	}

	raw, err := o.call(ctx, system, classifyPrompt(items, criteria))
	if err != nil {
		return nil, err
	}

	verdicts, err := parseVerdicts(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("classification batch completed", "model", o.model, "items", len(items), "verdicts", len(verdicts))
	return verdicts, nil
}

func (o *OpenAIOracle) Compose(ctx context.Context, item Item, constraints Constraints, feedback string) (Draft, error) {
	raw, err := o.call(ctx, o.composeSystem, composePrompt(item, constraints, feedback))
	if err != nil {
		return Draft{}, err
	}
	return parseDraft(raw)
}

func (o *OpenAIOracle) call(ctx context.Context, system, user string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}

	resp, err := o.llm.GenerateContent(ctx, content,
		llms.WithTemperature(o.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return "", fmt.Errorf("oracle call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	return resp.Choices[0].Content, nil
}
