package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"flag-challenge-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CatalogSource fetches catalog content from a backing store (postgres).
type CatalogSource interface {
	ListAll(ctx context.Context) ([]domain.Country, error)
}

// CatalogCache caches the full country list in process with TTL to avoid
// repeated store hits; the catalog is small and read-mostly, so tier and
// code lookups filter the cached list.
type CatalogCache struct {
	source CatalogSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	countries []domain.Country
	byCode    map[string]domain.Country
	expiresAt time.Time
}

func NewCatalogCache(source CatalogSource, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithClock is a test hook for deterministic expiry.
func (c *CatalogCache) WithClock(clock func() time.Time) *CatalogCache {
	c.clock = clock
	return c
}

func (c *CatalogCache) ListAll(ctx context.Context) ([]domain.Country, error) {
	countries, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.Country(nil), countries...), nil
}

func (c *CatalogCache) ListByTier(ctx context.Context, tier string) ([]domain.Country, error) {
	countries, _, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Country, 0)
	for _, country := range countries {
		if country.DifficultyTier == tier {
			out = append(out, country)
		}
	}
	return out, nil
}

func (c *CatalogCache) GetByCode(ctx context.Context, code string) (domain.Country, error) {
	_, byCode, err := c.snapshot(ctx)
	if err != nil {
		return domain.Country{}, err
	}
	country, ok := byCode[code]
	if !ok {
		return domain.Country{}, domain.ErrCountryNotFound
	}
	return country, nil
}

func (c *CatalogCache) snapshot(ctx context.Context) ([]domain.Country, map[string]domain.Country, error) {
	now := c.clock()

	c.mu.RLock()
	if c.countries != nil && c.expiresAt.After(now) {
		countries, byCode := c.countries, c.byCode
		c.mu.RUnlock()
		return countries, byCode, nil
	}
	c.mu.RUnlock()

	_, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.countries != nil && c.expiresAt.After(now) {
			c.mu.RUnlock()
			return nil, nil
		}
		c.mu.RUnlock()

		countries, err := c.source.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		byCode := make(map[string]domain.Country, len(countries))
		for _, country := range countries {
			byCode[country.Code] = country
		}

		c.mu.Lock()
		c.countries = countries
		c.byCode = byCode
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.countries, c.byCode, nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
