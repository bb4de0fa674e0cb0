package dedupe

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"unicode"

	"pydigest/internal/oracle"
	"pydigest/internal/types"
)

// Deduplicator partitions one run's raw items into canonical groups.
// Link identity is exact and hashed; title similarity is the fallback
// for syndicated stories living under different URLs.
type Deduplicator struct {
	titleThreshold    float64
	embedder          oracle.Embedder
	semanticThreshold float64
}

type Option func(*Deduplicator)

// WithSemantic enables an embedding-based similarity pass after the
// title check.
func WithSemantic(embedder oracle.Embedder, threshold float64) Option {
	return func(d *Deduplicator) {
		d.embedder = embedder
		d.semanticThreshold = threshold
	}
}

func New(titleThreshold float64, opts ...Option) *Deduplicator {
	if titleThreshold == 0 {
		titleThreshold = 0.8
	}
	d := &Deduplicator{titleThreshold: titleThreshold}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type group struct {
	members []types.RawItem
	tokens  map[string]struct{}
	vector  []float32
}

// Deduplicate groups the items and elects the earliest-published
// member of each group as its representative.
func (d *Deduplicator) Deduplicate(ctx context.Context, items []types.RawItem) []types.CanonicalItem {
	byLink := make(map[string]*group)
	var groups []*group

	vectors := d.embedTitles(ctx, items)

	for i, item := range items {
		normalized := NormalizeURL(item.Link)

		if g, ok := byLink[normalized]; ok {
			g.members = append(g.members, item)
			continue
		}

		tokens := titleTokens(item.Title)
		var vector []float32
		if vectors != nil {
			vector = vectors[i]
		}

		if g := d.findSimilar(groups, tokens, vector); g != nil {
			g.members = append(g.members, item)
			byLink[normalized] = g
			continue
		}

		g := &group{members: []types.RawItem{item}, tokens: tokens, vector: vector}
		groups = append(groups, g)
		byLink[normalized] = g
	}

	out := make([]types.CanonicalItem, 0, len(groups))
	for _, g := range groups {
		out = append(out, canonicalize(g.members))
	}

	slog.Info("deduplication complete", "raw", len(items), "canonical", len(out), "removed", len(items)-len(out))
	return out
}

func (d *Deduplicator) findSimilar(groups []*group, tokens map[string]struct{}, vector []float32) *group {
	for _, g := range groups {
		if tokenOverlap(tokens, g.tokens) >= d.titleThreshold {
			return g
		}
		if vector != nil && g.vector != nil && cosine(vector, g.vector) >= d.semanticThreshold {
			return g
		}
	}
	return nil
}

// embedTitles fetches title embeddings in one oracle call. Embedding
// failure disables the semantic pass for the run, nothing more.
func (d *Deduplicator) embedTitles(ctx context.Context, items []types.RawItem) [][]float32 {
	if d.embedder == nil || len(items) == 0 {
		return nil
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	vectors, err := d.embedder.Embed(ctx, titles)
	if err != nil {
		slog.Warn("title embedding failed, semantic dedupe disabled for this run", "error", err)
		return nil
	}
	return vectors
}

func canonicalize(members []types.RawItem) types.CanonicalItem {
	rep := members[0]
	for _, m := range members[1:] {
		if m.PublishedAt.Before(rep.PublishedAt) {
			rep = m
		}
	}

	return types.CanonicalItem{
		Title:          rep.Title,
		Summary:        rep.Summary,
		Link:           rep.Link,
		SourceID:       rep.SourceID,
		SourceTier:     rep.SourceTier,
		PublishedAt:    rep.PublishedAt,
		Members:        members,
		DuplicateCount: len(members) - 1,
	}
}

// Query parameters that identify a campaign, not a document.
var trackingParams = map[string]bool{
	"utm_campaign": true,
	"utm_source":   true,
	"utm_medium":   true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"ref":          true,
	"source":       true,
	"campaign":     true,
}

// NormalizeURL canonicalizes a link for identity comparison: lowercase
// scheme and host, trailing slash trimmed, tracking params and
// fragment dropped, remaining query sorted.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	query := parsed.Query()
	for param := range query {
		if trackingParams[strings.ToLower(param)] {
			query.Del(param)
		}
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""

	return parsed.String()
}

// titleTokens folds case, strips punctuation and collapses whitespace,
// returning the title's token set.
func titleTokens(title string) map[string]struct{} {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune(' ')
		}
	}

	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(sb.String()) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// tokenOverlap is the Jaccard ratio of two token sets.
func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
