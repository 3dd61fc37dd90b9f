package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const coursesKey = "situated:courses"

// Source provides the course catalogue.
type Source interface {
	Courses(ctx context.Context) ([]string, error)
}

// CachedCourses serves the course catalogue from Redis and falls back to the
// upstream source on a miss. A nil Redis client disables caching.
type CachedCourses struct {
	source Source
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedCourses wraps source with a Redis-backed cache.
func NewCachedCourses(source Source, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedCourses {
	return &CachedCourses{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "course_catalog").Logger(),
	}
}

// Courses returns the catalogue. Cache failures are logged and never surface.
func (c *CachedCourses) Courses(ctx context.Context) ([]string, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, coursesKey).Result(); err == nil {
			var courses []string
			if unmarshalErr := json.Unmarshal([]byte(cached), &courses); unmarshalErr == nil {
				c.logger.Debug().Int("count", len(courses)).Msg("course cache hit")
				return courses, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read course cache")
		}
	}

	courses, err := c.source.Courses(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.ttl > 0 {
		payload, err := json.Marshal(courses)
		if err == nil {
			if err := c.cache.Set(ctx, coursesKey, payload, c.ttl).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to store course cache")
			}
		}
	}

	return courses, nil
}

// Invalidate drops the cached catalogue.
func (c *CachedCourses) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Del(ctx, coursesKey).Err(); err != nil {
		return fmt.Errorf("invalidate course cache: %w", err)
	}
	return nil
}
