package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydigest/internal/types"
)

func searchSource(keyword string) types.SourceConfig {
	return types.SourceConfig{
		ID:      "search:" + keyword,
		Kind:    types.SourceSearch,
		Keyword: keyword,
		Tier:    2,
		Enabled: true,
	}
}

func TestSearchFetch(t *testing.T) {
	t.Parallel()

	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":            r.URL.Query().Get("q"),
			"cx":           r.URL.Query().Get("cx"),
			"key":          r.URL.Query().Get("key"),
			"num":          r.URL.Query().Get("num"),
			"sort":         r.URL.Query().Get("sort"),
			"dateRestrict": r.URL.Query().Get("dateRestrict"),
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items": [
			{"title": "PEP 9999 accepted", "link": "https://peps.python.org/pep-9999/", "snippet": "A new PEP."},
			{"title": "aggregated", "link": "https://news.google.com/articles/x", "snippet": "relink"},
			{"title": "no link", "link": "", "snippet": "dropped"}
		]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewSearchClient(srv.URL, "test-key", "test-cx", srv.Client())
	items, err := client.Fetch(context.Background(), searchSource("PEP"), 168*time.Hour, 20)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "PEP 9999 accepted", items[0].Title)
	assert.Equal(t, "https://peps.python.org/pep-9999/", items[0].Link)
	assert.Equal(t, "search:PEP", items[0].SourceID)
	assert.False(t, items[0].PublishedAt.IsZero())

	assert.Equal(t, "PEP", gotQuery["q"])
	assert.Equal(t, "test-cx", gotQuery["cx"])
	assert.Equal(t, "test-key", gotQuery["key"])
	assert.Equal(t, "10", gotQuery["num"])
	assert.Equal(t, "date", gotQuery["sort"])
	assert.Equal(t, "d7", gotQuery["dateRestrict"])
}

func TestSearchFetchUnconfigured(t *testing.T) {
	t.Parallel()

	client := NewSearchClient("https://example.com", "", "", nil)
	assert.False(t, client.Configured())

	_, err := client.Fetch(context.Background(), searchSource("PEP"), 168*time.Hour, 20)
	assert.Error(t, err)
}

func TestSearchFetchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewSearchClient(srv.URL, "k", "cx", srv.Client())
	_, err := client.Fetch(context.Background(), searchSource("PEP"), 168*time.Hour, 20)
	assert.Error(t, err)
}
