package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydigest/internal/types"
)

func scored(link string, tier int, score float64, published time.Time, relevant bool) types.ScoredItem {
	return types.ScoredItem{
		Item: types.CanonicalItem{
			Title:       "title " + link,
			Link:        link,
			SourceTier:  tier,
			PublishedAt: published,
		},
		Relevant: relevant,
		Score:    score,
	}
}

func links(ranked []types.RankedItem) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Item.Link
	}
	return out
}

func TestSelectOrdering(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []types.ScoredItem{
		scored("https://c.com/1", 2, 9.0, now, true),
		scored("https://a.com/1", 1, 5.0, now, true),
		scored("https://b.com/1", 1, 8.0, now, true),
		scored("https://d.com/1", 3, 10.0, now, true),
	}

	ranked := Select(items, 8, NewestFirst)
	assert.Equal(t, []string{
		"https://b.com/1",
		"https://a.com/1",
		"https://c.com/1",
		"https://d.com/1",
	}, links(ranked))
}

func TestSelectQuotaTruncation(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var items []types.ScoredItem
	for i := 0; i < 20; i++ {
		items = append(items, scored(link(i), 2, float64(i), now, true))
	}

	ranked := Select(items, 8, NewestFirst)
	require.Len(t, ranked, 8)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Position)
	}
	// Highest scores first within a single tier.
	assert.Equal(t, 19.0, ranked[0].Score)
}

func link(i int) string {
	return "https://example.com/post-" + string(rune('a'+i))
}

func TestSelectExcludesIrrelevant(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []types.ScoredItem{
		scored("https://a.com/1", 1, 9.0, now, false),
		scored("https://b.com/1", 2, 3.0, now, true),
	}

	ranked := Select(items, 8, NewestFirst)
	require.Len(t, ranked, 1)
	assert.Equal(t, "https://b.com/1", ranked[0].Item.Link)
}

func TestSelectFewerThanQuota(t *testing.T) {
	t.Parallel()

	items := []types.ScoredItem{
		scored("https://a.com/1", 1, 9.0, time.Now(), true),
	}

	ranked := Select(items, 8, NewestFirst)
	require.Len(t, ranked, 1)
	assert.Equal(t, 1, ranked[0].Position)
}

func TestSelectRecencyBreaksScoreTies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []types.ScoredItem{
		scored("https://old.com/1", 2, 7.0, now.Add(-48*time.Hour), true),
		scored("https://new.com/1", 2, 7.0, now, true),
	}

	ranked := Select(items, 8, NewestFirst)
	assert.Equal(t, []string{"https://new.com/1", "https://old.com/1"}, links(ranked))
}

func TestSelectOldestFirstReversesRecencyTies(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []types.ScoredItem{
		scored("https://new.com/1", 2, 7.0, now, true),
		scored("https://old.com/1", 2, 7.0, now.Add(-48*time.Hour), true),
	}

	ranked := Select(items, 8, OldestFirst)
	assert.Equal(t, []string{"https://old.com/1", "https://new.com/1"}, links(ranked))

	// Tier and score still dominate the recency direction.
	items = append(items, scored("https://top.com/1", 1, 1.0, now, true))
	ranked = Select(items, 8, OldestFirst)
	assert.Equal(t, "https://top.com/1", ranked[0].Item.Link)
}

func TestParseOrder(t *testing.T) {
	t.Parallel()

	order, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, NewestFirst, order)

	order, err = ParseOrder("oldest")
	require.NoError(t, err)
	assert.Equal(t, OldestFirst, order)

	_, err = ParseOrder("sideways")
	assert.Error(t, err)
}

func TestSelectLinkBreaksFullTies(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	items := []types.ScoredItem{
		scored("https://zzz.com/1", 2, 7.0, published, true),
		scored("https://aaa.com/1", 2, 7.0, published, true),
	}

	ranked := Select(items, 8, NewestFirst)
	assert.Equal(t, []string{"https://aaa.com/1", "https://zzz.com/1"}, links(ranked))
}

func TestSelectDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Now()
	items := []types.ScoredItem{
		scored("https://a.com/1", 3, 4.0, now.Add(-time.Hour), true),
		scored("https://b.com/1", 1, 4.0, now, true),
		scored("https://c.com/1", 2, 9.0, now, true),
		scored("https://d.com/1", 3, 4.0, now.Add(-time.Hour), true),
	}

	first := links(Select(items, 3, NewestFirst))
	for i := 0; i < 10; i++ {
		shuffled := []types.ScoredItem{items[3], items[1], items[0], items[2]}
		assert.Equal(t, first, links(Select(shuffled, 3, NewestFirst)))
	}
}
