package sources

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"pydigest/internal/cache"
	"pydigest/internal/types"
)

// Aggregators relink other people's content; their entries are never
// the canonical story.
var blockedDomains = map[string]bool{
	"news.google.com":     true,
	"news.ycombinator.com": true,
}

func isBlockedLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return blockedDomains[u.Hostname()]
}

const fetchUserAgent = "Mozilla/5.0 (compatible; pydigest RSS reader)"

type RSSClient struct {
	parser *gofeed.Parser
	client *http.Client
	cache  cache.Backend
}

func NewRSSClient(httpClient *http.Client, feedCache cache.Backend) *RSSClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RSSClient{
		parser: gofeed.NewParser(),
		client: httpClient,
		cache:  feedCache,
	}
}

// Fetch pulls one feed and returns its fresh entries in feed order,
// capped at maxItems. Entries with no parseable timestamp are treated
// as fresh and kept, so a sloppy feed never silently loses stories.
func (r *RSSClient) Fetch(ctx context.Context, src types.SourceConfig, lookback time.Duration, maxItems int) ([]types.RawItem, error) {
	body, err := r.fetchBody(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	slog.Debug("rss feed retrieved", "source", src.ID, "entries", len(feed.Items))

	fetchedAt := time.Now()
	cutoff := fetchedAt.Add(-lookback)

	items := make([]types.RawItem, 0, maxItems)
	for _, entry := range feed.Items {
		if len(items) >= maxItems {
			break
		}
		if entry.Link == "" || isBlockedLink(entry.Link) {
			continue
		}

		publishedAt := entryTimestamp(entry)
		if publishedAt.IsZero() {
			slog.Debug("rss entry has no timestamp, keeping as fresh", "source", src.ID, "link", entry.Link)
			publishedAt = fetchedAt
		} else if publishedAt.Before(cutoff) {
			continue
		}

		items = append(items, types.RawItem{
			SourceID:    src.ID,
			SourceTier:  src.Tier,
			Title:       strings.TrimSpace(entry.Title),
			Summary:     stripHTML(entrySummary(entry)),
			Link:        entry.Link,
			PublishedAt: publishedAt,
			FetchedAt:   fetchedAt,
		})
	}

	slog.Debug("rss feed processed", "source", src.ID, "fresh", len(items), "cutoff", cutoff)
	return items, nil
}

func (r *RSSClient) fetchBody(ctx context.Context, feedURL string) (string, error) {
	if r.cache != nil {
		if body, ok := r.cache.Get(ctx, "feed:"+feedURL); ok {
			slog.Debug("rss feed served from cache", "url", feedURL)
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("feed returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read feed body: %w", err)
	}

	body := string(data)
	if r.cache != nil {
		r.cache.Set(ctx, "feed:"+feedURL, body, 0)
	}
	return body, nil
}

func entryTimestamp(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

func entrySummary(entry *gofeed.Item) string {
	if entry.Description != "" {
		return entry.Description
	}
	return entry.Content
}

var htmlStripper = bluemonday.StrictPolicy()

// stripHTML removes tags, decodes entities and bounds the length of a
// feed summary.
func stripHTML(s string) string {
	s = htmlStripper.Sanitize(s)
	s = html.UnescapeString(s)
	return cutAt(strings.TrimSpace(s), 500)
}

// cutAt bounds s to at most n bytes without splitting a rune.
func cutAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
