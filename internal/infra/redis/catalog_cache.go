package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"flag-challenge-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogSource fetches catalog content from a backing store (postgres).
type CatalogSource interface {
	ListAll(ctx context.Context) ([]domain.Country, error)
}

const catalogKey = "catalog:countries"

// CatalogCache caches the country catalog in Redis as one hash keyed by
// country code, falling back to the source on a miss. The catalog is small
// and read-mostly; tier filtering happens in process over the cached set.
type CatalogCache struct {
	client *redis.Client
	source CatalogSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, source CatalogSource, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListAll(ctx context.Context) ([]domain.Country, error) {
	cached, err := c.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(cached) > 0 {
		return decodeCachedCountries(cached)
	}
	return c.fill(ctx)
}

func (c *CatalogCache) ListByTier(ctx context.Context, tier string) ([]domain.Country, error) {
	all, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Country, 0)
	for _, country := range all {
		if country.DifficultyTier == tier {
			out = append(out, country)
		}
	}
	return out, nil
}

func (c *CatalogCache) GetByCode(ctx context.Context, code string) (domain.Country, error) {
	raw, err := c.client.HGet(ctx, catalogKey, code).Result()
	if err == nil {
		var country domain.Country
		if uerr := json.Unmarshal([]byte(raw), &country); uerr == nil {
			return country, nil
		}
	}

	all, err := c.fill(ctx)
	if err != nil {
		return domain.Country{}, err
	}
	for _, country := range all {
		if country.Code == code {
			return country, nil
		}
	}
	return domain.Country{}, domain.ErrCountryNotFound
}

// fill loads the catalog from the source and repopulates the hash; only one
// fill runs at a time.
func (c *CatalogCache) fill(ctx context.Context) ([]domain.Country, error) {
	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the hash.
		cached, err := c.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(cached) > 0 {
			countries, derr := decodeCachedCountries(cached)
			if derr != nil {
				return nil, derr
			}
			return countries, nil
		}

		countries, err := c.source.ListAll(ctx)
		if err != nil {
			return nil, err
		}

		pipe := c.client.Pipeline()
		for _, country := range countries {
			raw, err := json.Marshal(country)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, catalogKey, country.Code, raw)
		}
		if c.ttl > 0 {
			pipe.Expire(ctx, catalogKey, c.ttlWithJitter())
		}
		_, _ = pipe.Exec(ctx)

		return countries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Country), nil
}

func decodeCachedCountries(cached map[string]string) ([]domain.Country, error) {
	countries := make([]domain.Country, 0, len(cached))
	for _, raw := range cached {
		var country domain.Country
		if err := json.Unmarshal([]byte(raw), &country); err != nil {
			return nil, err
		}
		countries = append(countries, country)
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
	return countries, nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
