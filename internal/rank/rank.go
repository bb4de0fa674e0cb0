package rank

import (
	"fmt"
	"log/slog"
	"sort"

	"pydigest/internal/types"
)

// Order is the recency direction used to break score ties. The rest of
// the rank key (tier, score, link) is fixed.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "newest":
		return NewestFirst, nil
	case "oldest":
		return OldestFirst, nil
	default:
		return NewestFirst, fmt.Errorf("unknown rank tie order: %s", s)
	}
}

// Select orders the relevant items and truncates to the quota. The
// ordering is a deterministic total order: source tier ascending,
// relevance score descending, published timestamp (direction per
// order), then link ascending so even byte-identical metadata ranks
// reproducibly.
func Select(scored []types.ScoredItem, quota int, order Order) []types.RankedItem {
	relevant := make([]types.ScoredItem, 0, len(scored))
	for _, si := range scored {
		if si.Relevant {
			relevant = append(relevant, si)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return less(&relevant[i], &relevant[j], order)
	})

	if quota > 0 && len(relevant) > quota {
		relevant = relevant[:quota]
	}

	ranked := make([]types.RankedItem, len(relevant))
	for i, si := range relevant {
		ranked[i] = types.RankedItem{ScoredItem: si, Position: i + 1}
	}

	slog.Info("ranking complete", "relevant", len(scored), "selected", len(ranked), "quota", quota)
	return ranked
}

func less(a, b *types.ScoredItem, order Order) bool {
	if a.Item.SourceTier != b.Item.SourceTier {
		return a.Item.SourceTier < b.Item.SourceTier
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Item.PublishedAt.Equal(b.Item.PublishedAt) {
		if order == OldestFirst {
			return a.Item.PublishedAt.Before(b.Item.PublishedAt)
		}
		return a.Item.PublishedAt.After(b.Item.PublishedAt)
	}
	return a.Item.Link < b.Item.Link
}
