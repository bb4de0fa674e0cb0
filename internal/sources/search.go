package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pydigest/internal/types"
)

// SearchClient queries the Google Custom Search JSON API, one request
// per configured keyword.
type SearchClient struct {
	endpoint string
	apiKey   string
	cseID    string
	client   *http.Client
}

func NewSearchClient(endpoint, apiKey, cseID string, httpClient *http.Client) *SearchClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SearchClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		cseID:    cseID,
		client:   httpClient,
	}
}

func (s *SearchClient) Configured() bool {
	return s.apiKey != "" && s.cseID != ""
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Fetch runs one keyword query. The API gives no reliable publication
// timestamp, so results are date-restricted server-side and treated as
// fresh on our side.
func (s *SearchClient) Fetch(ctx context.Context, src types.SourceConfig, lookback time.Duration, maxItems int) ([]types.RawItem, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("search backend is not configured")
	}

	num := maxItems
	if num > 10 {
		num = 10 // API maximum per request
	}

	days := int(lookback.Hours() / 24)
	if days < 1 {
		days = 1
	}

	params := url.Values{}
	params.Set("q", src.Keyword)
	params.Set("cx", s.cseID)
	params.Set("key", s.apiKey)
	params.Set("num", strconv.Itoa(num))
	params.Set("sort", "date")
	params.Set("dateRestrict", fmt.Sprintf("d%d", days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned %s", resp.Status)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	fetchedAt := time.Now()
	items := make([]types.RawItem, 0, len(parsed.Items))
	for _, result := range parsed.Items {
		if result.Link == "" || isBlockedLink(result.Link) {
			continue
		}
		items = append(items, types.RawItem{
			SourceID:    src.ID,
			SourceTier:  src.Tier,
			Title:       result.Title,
			Summary:     result.Snippet,
			Link:        result.Link,
			PublishedAt: fetchedAt,
			FetchedAt:   fetchedAt,
		})
	}

	slog.Debug("search query processed", "source", src.ID, "keyword", src.Keyword, "results", len(items))
	return items, nil
}
