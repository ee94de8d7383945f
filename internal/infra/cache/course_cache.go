// Package cache keeps course lookups in redis in front of the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"course-checkout/internal/domain/courses"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "course:"

// CourseSource is where cache misses are loaded from.
type CourseSource interface {
	FindCourse(ctx context.Context, id string) (*courses.Course, error)
}

// RedisClient is the part of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CourseCache is a read-through cache. Redis failures are logged and fall
// through to the source; only source errors reach the caller.
type CourseCache struct {
	source CourseSource
	redis  RedisClient
	ttl    time.Duration
}

func NewCourseCache(source CourseSource, client RedisClient, ttl time.Duration) *CourseCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CourseCache{source: source, redis: client, ttl: ttl}
}

func (c *CourseCache) FindCourse(ctx context.Context, id string) (*courses.Course, error) {
	key := keyPrefix + id

	cached, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var course courses.Course
		if err := json.Unmarshal([]byte(cached), &course); err == nil {
			return &course, nil
		}
		log.Printf("course cache: dropping undecodable entry %s", key)
	case !errors.Is(err, redis.Nil):
		log.Printf("course cache: get %s: %v", key, err)
	}

	course, err := c.source.FindCourse(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(course); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("course cache: set %s: %v", key, err)
		}
	}
	return course, nil
}

func (c *CourseCache) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("course cache: invalidate %v: %v", keys, err)
	}
}
