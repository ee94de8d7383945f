package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"course-checkout/internal/domain/courses"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FindCourse(ctx context.Context, id string) (*courses.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*courses.Course), args.Error(1)
}

func TestCourseCache_Hit(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockRedisClient)
	src := new(MockSource)

	data, err := json.Marshal(courses.Course{ID: "go-101", Title: "Go", Price: decimal.NewFromInt(999)})
	require.NoError(t, err)
	rdb.On("Get", ctx, "course:go-101").Return(redis.NewStringResult(string(data), nil))

	c := NewCourseCache(src, rdb, time.Minute)
	got, err := c.FindCourse(ctx, "go-101")
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(999)))
	src.AssertNotCalled(t, "FindCourse", mock.Anything, mock.Anything)
}

func TestCourseCache_MissLoadsAndStores(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockRedisClient)
	src := new(MockSource)

	rdb.On("Get", ctx, "course:go-101").Return(redis.NewStringResult("", redis.Nil))
	src.On("FindCourse", ctx, "go-101").Return(&courses.Course{ID: "go-101", Title: "Go"}, nil)
	rdb.On("Set", ctx, "course:go-101", mock.Anything, 2*time.Minute).Return(redis.NewStatusResult("OK", nil))

	c := NewCourseCache(src, rdb, 2*time.Minute)
	got, err := c.FindCourse(ctx, "go-101")
	require.NoError(t, err)
	assert.Equal(t, "Go", got.Title)
	rdb.AssertExpectations(t)
	src.AssertExpectations(t)
}

func TestCourseCache_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockRedisClient)
	src := new(MockSource)

	down := errors.New("connection refused")
	rdb.On("Get", ctx, "course:go-101").Return(redis.NewStringResult("", down))
	rdb.On("Set", ctx, "course:go-101", mock.Anything, time.Minute).Return(redis.NewStatusResult("", down))
	src.On("FindCourse", ctx, "go-101").Return(&courses.Course{ID: "go-101"}, nil)

	c := NewCourseCache(src, rdb, 0)
	got, err := c.FindCourse(ctx, "go-101")
	require.NoError(t, err)
	assert.Equal(t, "go-101", got.ID)
}

func TestCourseCache_SourceErrorPropagates(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockRedisClient)
	src := new(MockSource)

	notFound := errors.New("not found")
	rdb.On("Get", ctx, "course:nope").Return(redis.NewStringResult("", redis.Nil))
	src.On("FindCourse", ctx, "nope").Return(nil, notFound)

	c := NewCourseCache(src, rdb, time.Minute)
	_, err := c.FindCourse(ctx, "nope")
	assert.ErrorIs(t, err, notFound)
	rdb.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCourseCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockRedisClient)
	rdb.On("Del", ctx, []string{"course:a", "course:b"}).Return(redis.NewIntResult(2, nil))

	c := NewCourseCache(new(MockSource), rdb, time.Minute)
	c.Invalidate(ctx, "a", "b")
	c.Invalidate(ctx)
	rdb.AssertNumberOfCalls(t, "Del", 1)
}
