package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	logger := zap.NewNop()
	config := Config{
		Addr:       mr.Addr(),
		Password:   "",
		DB:         0,
		KeyPrefix:  "pe-test",
		DefaultTTL: 1 * time.Minute,
	}

	manager, err := NewManager(config, logger)
	require.NoError(t, err)

	return mr, manager
}

func TestNewManager(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	assert.NotNil(t, manager)
	assert.NotNil(t, manager.redis)
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	err := manager.Set(ctx, "intent", "test-key", "test-value", 1*time.Minute)
	require.NoError(t, err)

	value, err := manager.Get(ctx, "intent", "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)
}

func TestManager_NamespacesDontCollide(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "intent", "key", "intent-value", time.Minute))
	require.NoError(t, manager.Set(ctx, "technique", "key", "technique-value", time.Minute))

	v1, err := manager.Get(ctx, "intent", "key")
	require.NoError(t, err)
	assert.Equal(t, "intent-value", v1)

	v2, err := manager.Get(ctx, "technique", "key")
	require.NoError(t, err)
	assert.Equal(t, "technique-value", v2)
}

func TestManager_GetNonExistent(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	value, err := manager.Get(ctx, "intent", "non-existent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, "", value)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Delete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "intent", "test-key", "test-value", time.Minute))
	require.NoError(t, manager.Delete(ctx, "intent", "test-key"))

	_, err := manager.Get(ctx, "intent", "test-key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_DeleteByPattern(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "intent", "user:1:a", "v", time.Minute))
	require.NoError(t, manager.Set(ctx, "intent", "user:1:b", "v", time.Minute))
	require.NoError(t, manager.Set(ctx, "intent", "user:2:a", "v", time.Minute))

	n, err := manager.DeleteByPattern(ctx, "intent", "user:1:*")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = manager.Get(ctx, "intent", "user:2:a")
	assert.NoError(t, err)
}

func TestManager_SetJSON(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	type TestData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	data := TestData{Name: "test", Value: 123}

	require.NoError(t, manager.SetJSON(ctx, "intent", "test-json", data, time.Minute))

	var result TestData
	require.NoError(t, manager.GetJSON(ctx, "intent", "test-json", &result))

	assert.Equal(t, data.Name, result.Name)
	assert.Equal(t, data.Value, result.Value)
}

func TestManager_SetJSONInvalidData(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	invalidData := make(chan int)
	err := manager.SetJSON(ctx, "intent", "test-invalid", invalidData, time.Minute)
	assert.Error(t, err)
}

func TestManager_Exists(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "intent", "a", "v", time.Minute))

	count, err := manager.Exists(ctx, "intent", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestManager_SetIfAbsent(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	ok, err := manager.SetIfAbsent(ctx, "lock", "key", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.SetIfAbsent(ctx, "lock", "key", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := manager.Get(ctx, "lock", "key")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
}

func TestManager_Increment(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	n, err := manager.Increment(ctx, "counters", "hits", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = manager.Increment(ctx, "counters", "hits", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestManager_GetManySetMany(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	err := manager.SetMany(ctx, "intent", map[string]any{
		"a": "1",
		"b": "2",
	}, time.Minute)
	require.NoError(t, err)

	got, err := manager.GetMany(ctx, "intent", []string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Equal(t, "1", got["a"])
	assert.Equal(t, "2", got["b"])
	_, ok := got["missing"]
	assert.False(t, ok)
}

func TestManager_Check_RateLimit(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := manager.Check(ctx, "ratelimit", "user-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, info.Allowed, "request %d should be allowed", i+1)
	}

	info, err := manager.Check(ctx, "ratelimit", "user-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, int64(0), info.Remaining)
}

func TestManager_Check_FailsOpenWhenClosed(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()

	require.NoError(t, manager.Close())

	info, err := manager.Check(context.Background(), "ratelimit", "user-1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestManager_TTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "intent", "test-ttl", "value", 100*time.Millisecond))

	value, err := manager.Get(ctx, "intent", "test-ttl")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	mr.FastForward(200 * time.Millisecond)

	_, err = manager.Get(ctx, "intent", "test-ttl")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_HealthCheck(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	assert.NoError(t, manager.Ping(context.Background()))
}

func TestManager_HealthCheckFailed(t *testing.T) {
	logger := zap.NewNop()
	config := Config{
		Addr: "localhost:1", // nothing listening
	}

	manager, err := NewManager(config, logger)
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "concurrent-" + string(rune('0'+id))
			err := manager.Set(ctx, "intent", key, "value", time.Minute)
			assert.NoError(t, err)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "concurrent-" + string(rune('0'+id))
			value, err := manager.Get(ctx, "intent", key)
			assert.NoError(t, err)
			assert.Equal(t, "value", value)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_RateLimitInfo(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	count, ttl, err := manager.RateLimitInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, time.Duration(0), ttl)

	_, err = manager.Check(ctx, "ratelimit", "user-1", 5, time.Minute)
	require.NoError(t, err)
	_, err = manager.Check(ctx, "ratelimit", "user-1", 5, time.Minute)
	require.NoError(t, err)

	count, ttl, err = manager.RateLimitInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestManager_CachePredictionAndGetCachedPrediction(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()
	defer manager.Close()

	ctx := context.Background()

	type prediction struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}

	require.NoError(t, manager.CachePrediction(ctx, "intent-classifier", "hash-1", prediction{Intent: "code_generation", Confidence: 0.9}, time.Minute))

	var got prediction
	require.NoError(t, manager.GetCachedPrediction(ctx, "intent-classifier", "hash-1", &got))
	assert.Equal(t, "code_generation", got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)

	var miss prediction
	err := manager.GetCachedPrediction(ctx, "intent-classifier", "unknown-hash", &miss)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestManager_Operations_AfterClose(t *testing.T) {
	mr, manager := setupTestRedis(t)
	defer mr.Close()

	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "intent", "key")
	assert.Error(t, err)

	err = manager.Set(context.Background(), "intent", "key", "v", time.Minute)
	assert.Error(t, err)
}
