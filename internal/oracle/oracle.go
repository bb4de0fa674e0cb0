package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// The pipeline treats classification and generation as opaque oracles.
// Any backend that implements these interfaces can be substituted
// without touching stage logic.

// Item is the content handed to an oracle, keyed so verdicts can be
// mapped back onto canonical items.
type Item struct {
	Key     string `json:"link"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Criteria describes what "relevant" means for this digest.
type Criteria struct {
	Keywords     []string
	Audience     string
	SystemPrompt string
}

// Verdict is one per-item classification result.
type Verdict struct {
	Key         string  `json:"link"`
	Relevant    bool    `json:"is_relevant"`
	Score       float64 `json:"score"`
	ContentType string  `json:"content_type"`
	Reason      string  `json:"reason"`
}

// Constraints bound the composed post format.
type Constraints struct {
	TitleMaxLen   int
	SummaryMaxLen int
	Language      string
}

// Draft is the generation oracle's attempt at a post.
type Draft struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type Classifier interface {
	// Classify judges a batch of items against the criteria. A partial
	// result (fewer verdicts than items) is valid; callers fail closed
	// on the missing ones.
	Classify(ctx context.Context, items []Item, criteria Criteria) ([]Verdict, error)
}

type Composer interface {
	// Compose drafts a post for one item. Feedback carries the
	// violation text on the single re-prompt; empty on the first call.
	Compose(ctx context.Context, item Item, constraints Constraints, feedback string) (Draft, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func classifyPrompt(items []Item, criteria Criteria) string {
	var sb strings.Builder
	sb.WriteString("Judge each item for a curated digest.\n")
	if criteria.Audience != "" {
		sb.WriteString("Audience: " + criteria.Audience + "\n")
	}
	if len(criteria.Keywords) > 0 {
		sb.WriteString("Topics of interest: " + strings.Join(criteria.Keywords, ", ") + "\n")
	}
	sb.WriteString(`Respond with a JSON array, one object per item:
[{"link": "<item link>", "is_relevant": true|false, "score": 0-10, "content_type": "news|article|tutorial|story|meme|other", "reason": "<one sentence>"}]
No prose outside the JSON.

Items:
`)
	enc, _ := json.Marshal(items)
	sb.Write(enc)
	return sb.String()
}

func composePrompt(item Item, constraints Constraints, feedback string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Write a digest post for the item below.
Language: %s. Title at most %d characters. Summary at most %d characters.
Respond with a single JSON object: {"title": "...", "summary": "..."}. No prose outside the JSON.
`, constraints.Language, constraints.TitleMaxLen, constraints.SummaryMaxLen)
	if feedback != "" {
		sb.WriteString("Previous attempt was rejected: " + feedback + "\n")
	}
	sb.WriteString("\nItem:\n")
	enc, _ := json.Marshal(item)
	sb.Write(enc)
	return sb.String()
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func parseVerdicts(raw string) ([]Verdict, error) {
	var verdicts []Verdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdicts); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	return verdicts, nil
}

func parseDraft(raw string) (Draft, error) {
	var draft Draft
	if err := json.Unmarshal([]byte(stripFences(raw)), &draft); err != nil {
		return Draft{}, fmt.Errorf("failed to parse composition response: %w", err)
	}
	return draft, nil
}

const defaultFilterSystem = "You are the editor of a weekly Python digest. " +
	"You judge whether items are relevant and interesting for working Python developers."

const defaultCopywriterSystem = "You are a copywriter for a weekly Python digest. " +
	"You turn items into short, information-dense posts without fluff."
