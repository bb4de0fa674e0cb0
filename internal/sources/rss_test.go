package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydigest/internal/cache"
	"pydigest/internal/types"
)

func rssSource(url string) types.SourceConfig {
	return types.SourceConfig{ID: "test-feed", Kind: types.SourceRSS, URL: url, Tier: 2, Enabled: true}
}

func serveXML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rssItem(title, link string, published time.Time) string {
	pubDate := ""
	if !published.IsZero() {
		pubDate = "<pubDate>" + published.Format(time.RFC1123Z) + "</pubDate>"
	}
	return fmt.Sprintf("<item><title>%s</title><link>%s</link><description>desc</description>%s</item>",
		title, link, pubDate)
}

func rssFeed(items ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>test</title>`
	for _, it := range items {
		body += it
	}
	return body + `</channel></rss>`
}

func TestRSSFetchHonorsLookback(t *testing.T) {
	t.Parallel()

	now := time.Now()
	srv := serveXML(t, rssFeed(
		rssItem("fresh story", "https://example.com/fresh", now.Add(-2*time.Hour)),
		rssItem("stale story", "https://example.com/stale", now.Add(-200*time.Hour)),
	))

	client := NewRSSClient(srv.Client(), nil)
	items, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/fresh", items[0].Link)
	assert.Equal(t, "test-feed", items[0].SourceID)
	assert.Equal(t, 2, items[0].SourceTier)
}

func TestRSSFetchKeepsEntriesWithoutTimestamp(t *testing.T) {
	t.Parallel()

	srv := serveXML(t, rssFeed(
		rssItem("undated story", "https://example.com/undated", time.Time{}),
	))

	client := NewRSSClient(srv.Client(), nil)
	items, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.False(t, items[0].PublishedAt.IsZero())
	assert.WithinDuration(t, time.Now(), items[0].PublishedAt, time.Minute)
}

func TestRSSFetchSkipsAggregatorLinks(t *testing.T) {
	t.Parallel()

	now := time.Now()
	srv := serveXML(t, rssFeed(
		rssItem("relinked", "https://news.google.com/articles/abc", now),
		rssItem("relinked too", "https://news.ycombinator.com/item?id=1", now),
		rssItem("canonical", "https://blog.example.com/post", now),
	))

	client := NewRSSClient(srv.Client(), nil)
	items, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "https://blog.example.com/post", items[0].Link)
}

func TestRSSFetchCapsAtMaxItems(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var entries []string
	for i := 0; i < 30; i++ {
		entries = append(entries, rssItem(
			fmt.Sprintf("story %d", i),
			fmt.Sprintf("https://example.com/story-%d", i),
			now.Add(-time.Duration(i)*time.Minute),
		))
	}
	srv := serveXML(t, rssFeed(entries...))

	client := NewRSSClient(srv.Client(), nil)
	items, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	require.NoError(t, err)

	assert.Len(t, items, 20)
	// Feed order preserved.
	assert.Equal(t, "https://example.com/story-0", items[0].Link)
}

func TestRSSFetchStripsSummaryHTML(t *testing.T) {
	t.Parallel()

	now := time.Now()
	srv := serveXML(t, rssFeed(
		"<item><title>markup</title><link>https://example.com/markup</link>"+
			"<description>&lt;p&gt;Hello &amp;amp; &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description>"+
			"<pubDate>"+now.Format(time.RFC1123Z)+"</pubDate></item>",
	))

	client := NewRSSClient(srv.Client(), nil)
	items, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Hello & world", items[0].Summary)
}

func TestRSSFetchUsesCache(t *testing.T) {
	t.Parallel()

	now := time.Now()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, rssFeed(rssItem("cached story", "https://example.com/cached", now)))
	}))
	t.Cleanup(srv.Close)

	feedCache, err := cache.New(cache.Config{Backend: "memory", TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = feedCache.Close() })

	client := NewRSSClient(srv.Client(), feedCache)
	src := rssSource(srv.URL)

	for i := 0; i < 3; i++ {
		items, err := client.Fetch(context.Background(), src, 168*time.Hour, 20)
		require.NoError(t, err)
		require.Len(t, items, 1)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRSSFetchErrorOnBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	client := NewRSSClient(srv.Client(), nil)
	_, err := client.Fetch(context.Background(), rssSource(srv.URL), 168*time.Hour, 20)
	assert.Error(t, err)
}
