package inventory

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/multierr"

	"github.com/harbortrace/stockledger-backend/pkg/config"
	"github.com/harbortrace/stockledger-backend/pkg/db/models"
	"github.com/harbortrace/stockledger-backend/pkg/logger"
	"github.com/harbortrace/stockledger-backend/pkg/metrics"
	"github.com/harbortrace/stockledger-backend/pkg/redis"
)

// Cache key dimensions for single-item lookups.
const (
	DimensionID      = "id"
	DimensionProduct = "product"
	DimensionSKU     = "sku"
)

// List cache names. List reads are cached only for the default page size so
// invalidation stays a fixed key set.
const (
	ListAlerts = "alerts"
	ListReport = "report"
)

// Cache is the advisory read cache for inventory snapshots and list-shaped
// reads. Every method absorbs backend failures: a failed read is a miss, a
// failed write is logged and dropped. Correctness never depends on it.
type Cache interface {
	GetItem(ctx context.Context, dimension, key string) (*models.InventoryItem, bool)
	SetItem(ctx context.Context, item *models.InventoryItem)
	InvalidateItem(ctx context.Context, item *models.InventoryItem)
	GetList(ctx context.Context, name string, dest any) bool
	SetList(ctx context.Context, name string, value any)
	InvalidateLists(ctx context.Context)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ItemKey(dimension, value string) string
	ListKey(name string) string
}

type redisCache struct {
	store   cacheStore
	itemTTL time.Duration
	listTTL time.Duration
	logg    *logger.Logger
	metrics *metrics.StockMetrics
}

// NewCache wraps the redis client in the advisory cache policy. TTLs come
// from config.
func NewCache(store *redis.Client, cfg config.CacheConfig, logg *logger.Logger, stockMetrics *metrics.StockMetrics) Cache {
	return &redisCache{
		store:   store,
		itemTTL: cfg.ItemTTL,
		listTTL: cfg.ListTTL,
		logg:    logg,
		metrics: stockMetrics,
	}
}

func newCacheWithStore(store cacheStore, itemTTL, listTTL time.Duration, logg *logger.Logger, stockMetrics *metrics.StockMetrics) Cache {
	return &redisCache{
		store:   store,
		itemTTL: itemTTL,
		listTTL: listTTL,
		logg:    logg,
		metrics: stockMetrics,
	}
}

func (c *redisCache) GetItem(ctx context.Context, dimension, key string) (*models.InventoryItem, bool) {
	raw, err := c.store.Get(ctx, c.store.ItemKey(dimension, key))
	if err != nil {
		if err != redis.Nil {
			c.warn(ctx, "cache read failed", err)
		}
		c.metrics.IncCacheMiss("item")
		return nil, false
	}
	var item models.InventoryItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		c.warn(ctx, "cache entry corrupt, treating as miss", err)
		c.metrics.IncCacheMiss("item")
		return nil, false
	}
	c.metrics.IncCacheHit("item")
	return &item, true
}

func (c *redisCache) SetItem(ctx context.Context, item *models.InventoryItem) {
	if item == nil {
		return
	}
	raw, err := json.Marshal(item)
	if err != nil {
		c.warn(ctx, "cache encode failed", err)
		return
	}
	for _, key := range c.itemKeys(item) {
		if err := c.store.Set(ctx, key, string(raw), c.itemTTL); err != nil {
			c.warn(ctx, "cache write failed", err)
			return
		}
	}
}

func (c *redisCache) InvalidateItem(ctx context.Context, item *models.InventoryItem) {
	if item == nil {
		return
	}
	var errs error
	if err := c.store.Del(ctx, c.itemKeys(item)...); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.store.Del(ctx, c.store.ListKey(ListAlerts), c.store.ListKey(ListReport)); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		c.warn(ctx, "cache invalidation failed", errs)
	}
}

func (c *redisCache) GetList(ctx context.Context, name string, dest any) bool {
	raw, err := c.store.Get(ctx, c.store.ListKey(name))
	if err != nil {
		if err != redis.Nil {
			c.warn(ctx, "cache read failed", err)
		}
		c.metrics.IncCacheMiss("list")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.warn(ctx, "cache entry corrupt, treating as miss", err)
		c.metrics.IncCacheMiss("list")
		return false
	}
	c.metrics.IncCacheHit("list")
	return true
}

func (c *redisCache) SetList(ctx context.Context, name string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.warn(ctx, "cache encode failed", err)
		return
	}
	if err := c.store.Set(ctx, c.store.ListKey(name), string(raw), c.listTTL); err != nil {
		c.warn(ctx, "cache write failed", err)
	}
}

func (c *redisCache) InvalidateLists(ctx context.Context) {
	if err := c.store.Del(ctx, c.store.ListKey(ListAlerts), c.store.ListKey(ListReport)); err != nil {
		c.warn(ctx, "cache invalidation failed", err)
	}
}

func (c *redisCache) itemKeys(item *models.InventoryItem) []string {
	return []string{
		c.store.ItemKey(DimensionID, item.ID.String()),
		c.store.ItemKey(DimensionProduct, item.ProductID.String()),
		c.store.ItemKey(DimensionSKU, item.SKU),
	}
}

func (c *redisCache) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithField(ctx, "cache_error", err.Error())
	c.logg.Warn(logCtx, msg)
}

type noopCache struct{}

// NewNoopCache returns a cache that never hits, for deployments without a
// Redis instance.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) GetItem(context.Context, string, string) (*models.InventoryItem, bool) {
	return nil, false
}
func (noopCache) SetItem(context.Context, *models.InventoryItem)        {}
func (noopCache) InvalidateItem(context.Context, *models.InventoryItem) {}
func (noopCache) GetList(context.Context, string, any) bool             { return false }
func (noopCache) SetList(context.Context, string, any)                  {}
func (noopCache) InvalidateLists(context.Context)                       {}
