package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存的基本功能
func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache, err := NewMemoryCache(Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, cache.Set(ctx, "key1", "value1", 0))
	val, found, err := cache.Get(ctx, "key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	val, found, err = cache.Get(ctx, "non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 过期
	require.NoError(t, cache.Set(ctx, "expire-soon", "temp-value", time.Millisecond*50))
	time.Sleep(time.Millisecond * 120)
	_, found, err = cache.Get(ctx, "expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 删除
	require.NoError(t, cache.Set(ctx, "to-delete", "delete-me", 0))
	require.NoError(t, cache.Delete(ctx, "to-delete"))
	_, found, _ = cache.Get(ctx, "to-delete")
	assert.False(t, found)

	// 清空
	require.NoError(t, cache.Set(ctx, "key2", "value2", 0))
	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 0, cache.(*MemoryCache).Len())
}

func newTestRedisCache(t *testing.T, prefix string) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		KeyPrefix:  prefix,
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.(*RedisCache).Close() })
	return mr, cache
}

// TestRedisCache 使用miniredis测试Redis缓存
func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestRedisCache(t, "transition")

	require.NoError(t, cache.Set(ctx, "redis-key1", "redis-value1", 0))
	val, found, err := cache.Get(ctx, "redis-key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "redis-value1", val)

	// 键带前缀，并使用默认TTL
	assert.True(t, mr.Exists("transition:redis-key1"))
	assert.Equal(t, time.Minute, mr.TTL("transition:redis-key1"))

	_, found, err = cache.Get(ctx, "redis-non-existent")
	assert.NoError(t, err)
	assert.False(t, found)

	// 过期
	require.NoError(t, cache.Set(ctx, "redis-expire-soon", "v", time.Second))
	mr.FastForward(2 * time.Second)
	_, found, err = cache.Get(ctx, "redis-expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 删除
	require.NoError(t, cache.Set(ctx, "redis-to-delete", "v", 0))
	require.NoError(t, cache.Delete(ctx, "redis-to-delete"))
	_, found, _ = cache.Get(ctx, "redis-to-delete")
	assert.False(t, found)
}

// TestRedisCacheClearKeepsOtherKeys 带前缀时Clear不影响其他键
func TestRedisCacheClearKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	mr, cache := newTestRedisCache(t, "transition")

	require.NoError(t, mr.Set("asynq:other", "keep"))
	require.NoError(t, cache.Set(ctx, "a", "1", 0))
	require.NoError(t, cache.Set(ctx, "b", "2", 0))

	require.NoError(t, cache.Clear(ctx))

	assert.False(t, mr.Exists("transition:a"))
	assert.False(t, mr.Exists("transition:b"))
	assert.True(t, mr.Exists("asynq:other"))
}

// TestRedisCacheUnavailable 连接失败时返回错误
func TestRedisCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(Config{Type: "redis", RedisAddr: addr})
	assert.Error(t, err)
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	memCache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, memCache)

	mr := miniredis.RunT(t)
	redisCache, err := NewCache(Config{Type: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, redisCache)

	// 未知类型回退到内存缓存
	unknownCache, err := NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, unknownCache)
}

// TestGenerateCacheKey 测试缓存键生成
func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:part1", GenerateCacheKey("prefix", "part1"))
	assert.Equal(t, "prefix:part1:part2:part3", GenerateCacheKey("prefix", "part1", "part2", "part3"))

	// 分隔符防止拼接歧义
	assert.NotEqual(t, HashParts("ab", "c"), HashParts("a", "bc"))
	assert.Len(t, HashParts("x"), 40)
}
