package scraper

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/xxxsen/eversd/internal/model"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Store is the persistence a CachedFetcher needs.
type Store interface {
	Get(ctx context.Context, source, key string, ttl time.Duration) (string, bool, error)
	Put(ctx context.Context, source, key, payload string) error
}

// CachedFetcher answers from the store while a result is younger than ttl.
// Store failures are logged and fall through to the wrapped fetcher.
type CachedFetcher struct {
	next  Fetcher
	store Store
	ttl   time.Duration
}

func NewCachedFetcher(next Fetcher, store Store, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, store: store, ttl: ttl}
}

func (c *CachedFetcher) Name() string { return c.next.Name() }

func (c *CachedFetcher) Fetch(ctx context.Context, identifier string) (*model.ScrapedInfo, error) {
	logger := logutil.GetLogger(ctx)
	key := strings.TrimSpace(identifier)

	payload, ok, err := c.store.Get(ctx, c.next.Name(), key, c.ttl)
	if err != nil {
		logger.Warn("read scrape cache failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var info model.ScrapedInfo
		if err := json.Unmarshal([]byte(payload), &info); err == nil {
			logger.Debug("scrape cache hit", zap.String("key", key))
			return &info, nil
		}
	}

	info, err := c.next.Fetch(ctx, identifier)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(info)
	if err == nil {
		if err := c.store.Put(ctx, c.next.Name(), key, string(raw)); err != nil {
			logger.Warn("write scrape cache failed", zap.String("key", key), zap.Error(err))
		}
	}
	return info, nil
}
