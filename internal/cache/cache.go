package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Backend is a string cache used to spare rate-limited upstreams when
// runs are scheduled close together. Misses are never an error.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Close() error
}

type Config struct {
	Backend string
	TTL     time.Duration
	Addr    string
}

func New(cfg Config) (Backend, error) {
	if cfg.TTL == 0 {
		cfg.TTL = 1 * time.Hour
	}

	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		return NewRedis(cfg.Addr, cfg.TTL)
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

type Memory struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	slog.Debug("cache initialized", "backend", "memory", "ttl", ttl)
	return &Memory{
		cache: gocache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (string, bool) {
	value, found := m.cache.Get(key)
	if !found {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl == 0 {
		ttl = m.ttl
	}
	m.cache.Set(key, value, ttl)
}

func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}
