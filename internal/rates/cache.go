package rates

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// Cached memoises the successful lookups of a slower Source. Misses are
// not cached so a source that learns new rates is asked again.
type Cached struct {
	src   Source
	cache *cache.Cache
}

// NewCached wraps src. A ttl <= 0 keeps entries for the life of the value.
func NewCached(src Source, ttl time.Duration) *Cached {
	if ttl <= 0 {
		return &Cached{src: src, cache: cache.New(cache.NoExpiration, 0)}
	}
	return &Cached{src: src, cache: cache.New(ttl, 2*ttl)}
}

// Rate implements Source.
func (c *Cached) Rate(currency string, on time.Time) (decimal.Decimal, error) {
	key := Key(currency, on)
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	r, err := c.src.Rate(currency, on)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.SetDefault(key, r)
	return r, nil
}

// Len returns the number of cached rates.
func (c *Cached) Len() int { return c.cache.ItemCount() }
