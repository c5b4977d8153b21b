// Package cache caches resolved phrase queries in Redis. Keys are hashed
// from the variant and the normalized terms in query order: phrase matching
// is order-sensitive, so no term sorting happens here.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/phraselab/phrase-search-platform/internal/searcher"
	"github.com/phraselab/phrase-search-platform/pkg/config"
	pkgredis "github.com/phraselab/phrase-search-platform/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "phrase:"

type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, variant string, terms []string) (*searcher.PhraseResult, bool) {
	key := c.buildKey(variant, terms)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result searcher.PhraseResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "variant", variant, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, variant string, terms []string, result *searcher.PhraseResult) {
	key := c.buildKey(variant, terms)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn exactly once per
// key across concurrent callers, caching its result. The bool reports a
// cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	variant string,
	terms []string,
	computeFn func() (*searcher.PhraseResult, error),
) (*searcher.PhraseResult, bool, error) {
	if result, ok := c.Get(ctx, variant, terms); ok {
		return result, true, nil
	}
	key := c.buildKey(variant, terms)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, variant, terms); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, variant, terms, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*searcher.PhraseResult), false, nil
}

// Invalidate deletes every cached phrase result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(variant string, terms []string) string {
	raw := variant + "|" + strings.Join(terms, " ")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
