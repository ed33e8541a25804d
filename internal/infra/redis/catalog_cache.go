package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"ielts-practice-service/internal/app"
	"ielts-practice-service/internal/domain"
)

// CatalogCache is a read-through cache in front of the question/section
// catalog. Catalog content changes rarely, so every lookup is cached as a
// JSON blob under a per-method key with a jittered TTL; singleflight
// collapses concurrent misses for the same key into one backing load.
type CatalogCache struct {
	client *redis.Client
	inner  app.Catalog
	ttl    time.Duration
	sf     singleflight.Group
}

func NewCatalogCache(client *redis.Client, inner app.Catalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, inner: inner, ttl: ttl}
}

func (c *CatalogCache) QuestionByID(ctx context.Context, id int64) (domain.Question, error) {
	return cached(ctx, c, fmt.Sprintf("catalog:question:%d", id), func(ctx context.Context) (domain.Question, error) {
		return c.inner.QuestionByID(ctx, id)
	})
}

func (c *CatalogCache) QuestionsBySection(ctx context.Context, sectionID int64) ([]domain.Question, error) {
	return cached(ctx, c, fmt.Sprintf("catalog:section:%d:questions", sectionID), func(ctx context.Context) ([]domain.Question, error) {
		return c.inner.QuestionsBySection(ctx, sectionID)
	})
}

func (c *CatalogCache) SectionByID(ctx context.Context, id int64) (domain.Section, error) {
	return cached(ctx, c, fmt.Sprintf("catalog:section:%d", id), func(ctx context.Context) (domain.Section, error) {
		return c.inner.SectionByID(ctx, id)
	})
}

func (c *CatalogCache) SectionsForTest(ctx context.Context, examSource string, testNumber int, skill string) ([]domain.Section, error) {
	key := fmt.Sprintf("catalog:test:%s:%d:%s:sections", examSource, testNumber, skill)
	return cached(ctx, c, key, func(ctx context.Context) ([]domain.Section, error) {
		return c.inner.SectionsForTest(ctx, examSource, testNumber, skill)
	})
}

func (c *CatalogCache) CountQuestions(ctx context.Context, examSource string, testNumber int, skill string) (int, error) {
	key := fmt.Sprintf("catalog:test:%s:%d:%s:count", examSource, testNumber, skill)
	return cached(ctx, c, key, func(ctx context.Context) (int, error) {
		return c.inner.CountQuestions(ctx, examSource, testNumber, skill)
	})
}

func (c *CatalogCache) ExamSources(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "catalog:sources", func(ctx context.Context) ([]string, error) {
		return c.inner.ExamSources(ctx)
	})
}

func (c *CatalogCache) TestNumbers(ctx context.Context, examSource string) ([]int, error) {
	return cached(ctx, c, "catalog:sources:"+examSource+":tests", func(ctx context.Context) ([]int, error) {
		return c.inner.TestNumbers(ctx, examSource)
	})
}

func cached[T any](ctx context.Context, c *CatalogCache, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key meanwhile.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var value T
			if err := json.Unmarshal(raw, &value); err == nil {
				return value, nil
			}
		}

		value, err := load(ctx)
		if err != nil {
			return zero, err
		}
		if raw, err := json.Marshal(value); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return value, nil
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// ttlWithJitter spreads expirations by up to 10% to avoid thundering reloads.
func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
