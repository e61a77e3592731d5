package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/ggonzalez94/defi-sentinel/internal/cache"
)

const DefaultCacheTTL = 24 * time.Hour

// Cached serves repeated prompts from the sqlite cache. Cache failures are
// logged and never fail the completion.
type Cached struct {
	next  Completer
	store *cache.Store
	model string
	ttl   time.Duration
	log   *slog.Logger
}

func NewCached(next Completer, store *cache.Store, model string, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cached{next: next, store: store, model: model, ttl: ttl, log: logger}
}

func (c *Cached) Complete(ctx context.Context, system, user string) (string, error) {
	if c.store == nil {
		return c.next.Complete(ctx, system, user)
	}
	key := cache.Key(c.model, system, user)
	entry, ok, err := c.store.Get(key)
	if err != nil {
		c.log.Warn("completion cache read failed", "error", err)
	}
	if ok {
		c.log.Debug("completion cache hit", "age", entry.Age)
		return string(entry.Value), nil
	}
	text, err := c.next.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(key, c.model, []byte(text), c.ttl); err != nil {
		c.log.Warn("completion cache write failed", "error", err)
	}
	return text, nil
}
