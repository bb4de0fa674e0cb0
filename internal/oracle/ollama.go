package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ollama/ollama/api"
)

// OllamaOracle runs classification, composition and embeddings against
// a local ollama daemon. Client configuration comes from the
// environment, same as the ollama CLI.
type OllamaOracle struct {
	client        *api.Client
	model         string
	embedModel    string
	composeSystem string
}

func NewOllamaOracle(model, embedModel, copywriterSystem string) (*OllamaOracle, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model cannot be empty")
	}
	if embedModel == "" {
		embedModel = "nomic-embed-text"
	}
	if copywriterSystem == "" {
		copywriterSystem = defaultCopywriterSystem
	}

	return &OllamaOracle{
		client:        client,
		model:         model,
		embedModel:    embedModel,
		composeSystem: copywriterSystem,
	}, nil
}

func (o *OllamaOracle) Classify(ctx context.Context, items []Item, criteria Criteria) ([]Verdict, error) {
	system := criteria.SystemPrompt
	if system == "" {
		system = defaultFilterSystem
	}

	raw, err := o.generate(ctx, system+"\n\n"+classifyPrompt(items, criteria))
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

func (o *OllamaOracle) Compose(ctx context.Context, item Item, constraints Constraints, feedback string) (Draft, error) {
	raw, err := o.generate(ctx, o.composeSystem+"\n\n"+composePrompt(item, constraints, feedback))
	if err != nil {
		return Draft{}, err
	}
	return parseDraft(raw)
}

func (o *OllamaOracle) generate(ctx context.Context, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: new(bool),
		Format: json.RawMessage(`"json"`),
	}

	var out string
	respFunc := func(resp api.GenerateResponse) error {
		if resp.Done {
			out = resp.Response
		}
		return nil
	}

	if err := o.client.Generate(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return out, nil
}

func (o *OllamaOracle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embed(ctx, &api.EmbedRequest{
		Model: o.embedModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
