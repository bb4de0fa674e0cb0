package targets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/feeds"

	"pydigest/internal/storage"
	"pydigest/internal/types"
)

// FeedTarget serves the latest digest as an Atom/RSS feed over HTTP so
// downstream renderers can subscribe to it. On startup the feed is
// rebuilt from persisted posts, so a restart does not empty it.
type FeedTarget struct {
	name    string
	config  FeedConfig
	posts   storage.PostStore
	items   []*feeds.Item
	mu      sync.RWMutex
	server  *http.Server
	lastRun time.Time
}

type FeedConfig struct {
	Port     string
	Title    string
	Link     string
	FeedSize int
}

func NewFeedTarget(name string, config FeedConfig, posts storage.PostStore) *FeedTarget {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.Title == "" {
		config.Title = "pydigest"
	}
	if config.FeedSize == 0 {
		config.FeedSize = 100
	}

	return &FeedTarget{
		name:   name,
		config: config,
		posts:  posts,
		items:  make([]*feeds.Item, 0, config.FeedSize),
	}
}

func (t *FeedTarget) Name() string {
	return t.name
}

func (t *FeedTarget) Initialize(ctx context.Context) error {
	if err := t.hydrate(ctx); err != nil {
		slog.Warn("feed hydration failed, starting empty", "target", t.name, "error", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/digest.rss", t.handleRSS)
	mux.HandleFunc("/digest.atom", t.handleAtom)
	mux.HandleFunc("/health", t.handleHealth)

	t.server = &http.Server{
		Addr:    ":" + t.config.Port,
		Handler: mux,
	}

	go func() {
		slog.Info("feed target listening", "target", t.name, "port", t.config.Port)
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("feed target server error", "target", t.name, "error", err)
		}
	}()

	return nil
}

// hydrate rebuilds the in-memory feed from the persisted posts of
// earlier runs.
func (t *FeedTarget) hydrate(ctx context.Context) error {
	if t.posts == nil {
		return nil
	}

	records, err := t.posts.ListRecent(ctx, t.config.FeedSize)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// ListRecent is newest first; items are kept oldest first.
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		t.items = append(t.items, &feeds.Item{
			Title:       rec.Title,
			Link:        &feeds.Link{Href: rec.Link},
			Description: rec.Summary,
			Created:     rec.CreatedAt,
		})
	}

	slog.Info("feed target hydrated", "target", t.name, "items", len(t.items))
	return nil
}

func (t *FeedTarget) Publish(ctx context.Context, posts []types.Post, run *types.PipelineRun) error {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, post := range posts {
		t.items = append(t.items, &feeds.Item{
			Title:       post.Title,
			Link:        &feeds.Link{Href: post.Link},
			Description: post.Summary,
			Created:     now,
		})
	}
	if len(t.items) > t.config.FeedSize {
		t.items = t.items[len(t.items)-t.config.FeedSize:]
	}
	t.lastRun = now

	slog.Info("feed target updated", "target", t.name, "new_items", len(posts), "feed_items", len(t.items))
	return nil
}

func (t *FeedTarget) buildFeed() *feeds.Feed {
	t.mu.RLock()
	defer t.mu.RUnlock()

	feed := &feeds.Feed{
		Title:       t.config.Title,
		Link:        &feeds.Link{Href: t.config.Link},
		Description: "Curated digest posts",
		Created:     t.lastRun,
	}

	// Newest first.
	for i := len(t.items) - 1; i >= 0; i-- {
		feed.Items = append(feed.Items, t.items[i])
	}
	return feed
}

func (t *FeedTarget) handleRSS(w http.ResponseWriter, r *http.Request) {
	body, err := t.buildFeed().ToRss()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render feed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(body))
}

func (t *FeedTarget) handleAtom(w http.ResponseWriter, r *http.Request) {
	body, err := t.buildFeed().ToAtom()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render feed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Write([]byte(body))
}

func (t *FeedTarget) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (t *FeedTarget) Shutdown(ctx context.Context) error {
	if t.server == nil {
		return nil
	}
	return t.server.Shutdown(ctx)
}
