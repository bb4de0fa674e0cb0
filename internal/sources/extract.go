package sources

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extractor enriches a raw item's summary with readable text from the
// article page. Enrichment is best-effort: on any failure the feed
// summary stands.
type Extractor struct {
	client *http.Client
}

func NewExtractor(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{client: httpClient}
}

// Summary fetches the page and extracts its readable text, falling
// back to the og:description meta tag when readability yields nothing.
func (e *Extractor) Summary(link string) (string, error) {
	if link == "" {
		return "", fmt.Errorf("link is empty")
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("link missing scheme or host")
	}

	req, err := http.NewRequest(http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return boundText(article.TextContent), nil
	}
	if err != nil {
		slog.Debug("readability extraction failed, trying meta tags", "link", link, "error", err)
	}

	return metaDescription(string(body))
}

func metaDescription(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && desc != "" {
		return boundText(desc), nil
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		return boundText(desc), nil
	}

	return "", fmt.Errorf("no extractable description")
}

func boundText(s string) string {
	return cutAt(strings.Join(strings.Fields(s), " "), 1000)
}
