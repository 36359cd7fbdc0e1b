package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// CachedReader is a cache-aside Reader. Concurrent misses for the same
// product collapse into one lookup. A nil redis client disables the cache
// but keeps miss collapsing. Checkout never goes through this reader: it
// reads live prices inside its transaction.
type CachedReader struct {
	next   Reader
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewCachedReader(next Reader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedReader {
	return &CachedReader{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func productKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

func (c *CachedReader) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	if p, ok := c.get(ctx, id); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(productKey(id), func() (interface{}, error) {
		if p, ok := c.get(ctx, id); ok {
			return p, nil
		}
		p, err := c.next.FindProductByID(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		c.set(ctx, p)
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	return v.(domain.Product), nil
}

// Invalidate drops a cached product, e.g. after a catalog price change.
func (c *CachedReader) Invalidate(ctx context.Context, id int64) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, productKey(id)).Err()
}

func (c *CachedReader) get(ctx context.Context, id int64) (domain.Product, bool) {
	if c.client == nil {
		return domain.Product{}, false
	}

	value, err := c.client.Get(ctx, productKey(id)).Result()
	if err == redis.Nil {
		return domain.Product{}, false
	}
	if err != nil {
		c.logger.Warn("product cache read failed", "error", err, "product_id", id)
		return domain.Product{}, false
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		c.logger.Warn("product cache entry corrupt", "error", err, "product_id", id)
		return domain.Product{}, false
	}
	return p, true
}

func (c *CachedReader) set(ctx context.Context, p domain.Product) {
	if c.client == nil {
		return
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKey(p.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("product cache write failed", "error", err, "product_id", p.ID)
	}
}
