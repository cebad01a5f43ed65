// Package cache provides the namespaced Redis-backed cache layer used by
// the classifier, technique engine and orchestrator. Internal package,
// not for import outside this module.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 cache manager
// =============================================================================

// Manager is the namespaced cache/rate-limit layer (spec §4.2).
type Manager struct {
	redis  *redis.Client
	config Config
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// Config configures the cache manager.
type Config struct {
	Addr                string        `yaml:"addr" json:"addr"`
	Password            string        `yaml:"password" json:"password"`
	DB                  int           `yaml:"db" json:"db"`
	KeyPrefix           string        `yaml:"key_prefix" json:"key_prefix"`
	DefaultTTL          time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries"`
	PoolSize            int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns        int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
	ScanBatchSize       int64         `yaml:"scan_batch_size" json:"scan_batch_size"`
}

// DefaultConfig returns sane defaults for standalone use (e.g. in tests).
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		KeyPrefix:           "promptenhancer",
		DefaultTTL:          5 * time.Minute,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
		ScanBatchSize:       200,
	}
}

// NewManager connects to Redis and starts the background health-check loop.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if config.ScanBatchSize <= 0 {
		config.ScanBatchSize = 200
	}

	m := &Manager{
		redis:  client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}

	if config.HealthCheckInterval > 0 {
		go m.healthCheckLoop()
	}

	logger.Info("cache manager initialized",
		zap.String("addr", config.Addr),
		zap.Int("pool_size", config.PoolSize),
	)

	return m, nil
}

// namespacedKey joins the configured prefix, namespace and key. Namespaces
// partition keyspace for intent/prediction/technique/rate-limit data so a
// DeleteByPattern against one namespace never touches another's entries.
func (m *Manager) namespacedKey(namespace, key string) string {
	if namespace == "" {
		return fmt.Sprintf("%s:%s", m.config.KeyPrefix, key)
	}
	return fmt.Sprintf("%s:%s:%s", m.config.KeyPrefix, namespace, key)
}

func (m *Manager) ensureOpen() error {
	if m.closed {
		return fmt.Errorf("cache manager is closed")
	}
	return nil
}

// encode serializes v for storage. Strings and byte slices pass through
// unchanged; everything else is JSON-encoded, matching how the original
// service's _serialize helper distinguishes primitives from structures.
func encode(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal cache value: %w", err)
		}
		return string(data), nil
	}
}

// =============================================================================
// 🎯 core key/value operations
// =============================================================================

// Get returns the raw string stored at namespace/key, or ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, namespace, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return "", err
	}

	val, err := m.redis.Get(ctx, m.namespacedKey(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("cache get failed: %w", err)
	}

	return val, nil
}

// Set stores value at namespace/key with ttl (DefaultTTL if zero).
func (m *Manager) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return err
	}

	encoded, err := encode(value)
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	if err := m.redis.Set(ctx, m.namespacedKey(namespace, key), encoded, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}

	return nil
}

// GetJSON fetches namespace/key and unmarshals it into dest.
func (m *Manager) GetJSON(ctx context.Context, namespace, key string, dest any) error {
	val, err := m.Get(ctx, namespace, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// SetJSON marshals value and stores it at namespace/key.
func (m *Manager) SetJSON(ctx context.Context, namespace, key string, value any, ttl time.Duration) error {
	return m.Set(ctx, namespace, key, value, ttl)
}

// Delete removes one or more keys from namespace.
func (m *Manager) Delete(ctx context.Context, namespace string, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.namespacedKey(namespace, k)
	}

	if err := m.redis.Del(ctx, full...).Err(); err != nil {
		m.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}

	return nil
}

// DeleteByPattern deletes every key in namespace matching a glob pattern,
// scanning in ScanBatchSize-sized cursors so a large keyspace never blocks
// Redis the way a KEYS-based delete would.
func (m *Manager) DeleteByPattern(ctx context.Context, namespace, pattern string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return 0, err
	}

	fullPattern := m.namespacedKey(namespace, pattern)
	var cursor uint64
	var deleted int64

	for {
		keys, next, err := m.redis.Scan(ctx, cursor, fullPattern, m.config.ScanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan failed: %w", err)
		}

		if len(keys) > 0 {
			n, err := m.redis.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("cache delete-by-pattern failed: %w", err)
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return deleted, nil
}

// Exists reports how many of the given keys exist in namespace.
func (m *Manager) Exists(ctx context.Context, namespace string, keys ...string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return 0, err
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.namespacedKey(namespace, k)
	}

	count, err := m.redis.Exists(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache exists check failed: %w", err)
	}
	return count, nil
}

// SetIfAbsent stores value at namespace/key only if it doesn't already
// exist (SETNX), reporting whether the write took effect.
func (m *Manager) SetIfAbsent(ctx context.Context, namespace, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return false, err
	}

	encoded, err := encode(value)
	if err != nil {
		return false, err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	ok, err := m.redis.SetNX(ctx, m.namespacedKey(namespace, key), encoded, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache setnx failed: %w", err)
	}
	return ok, nil
}

// Increment atomically adds delta to the integer at namespace/key.
func (m *Manager) Increment(ctx context.Context, namespace, key string, delta int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return 0, err
	}

	n, err := m.redis.IncrBy(ctx, m.namespacedKey(namespace, key), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache increment failed: %w", err)
	}
	return n, nil
}

// GetMany fetches several keys from namespace in one round trip. Missing
// keys are simply absent from the result map, not reported as errors.
func (m *Manager) GetMany(ctx context.Context, namespace string, keys []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = m.namespacedKey(namespace, k)
	}

	vals, err := m.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget failed: %w", err)
	}

	out := make(map[string]string, len(keys))
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = s
		}
	}
	return out, nil
}

// SetMany writes several key/value pairs to namespace in a single
// pipeline, applying the same ttl to every entry (DefaultTTL if zero).
func (m *Manager) SetMany(ctx context.Context, namespace string, items map[string]any, ttl time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	pipe := m.redis.Pipeline()
	for key, value := range items {
		encoded, err := encode(value)
		if err != nil {
			return err
		}
		pipe.Set(ctx, m.namespacedKey(namespace, key), encoded, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache setmany failed: %w", err)
	}
	return nil
}

// =============================================================================
// 🚦 rate limiting
// =============================================================================

// RateLimitInfo is the outcome of a Check call, exposed so callers can
// surface remaining-quota/reset-time data (spec §4.2 supplemented).
type RateLimitInfo struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Count     int64
	ResetAt   time.Time
}

// rateLimitScript performs INCR+EXPIRE as one atomic round trip: EXPIRE
// is only applied on the first increment within the window, so repeated
// calls inside the window never push the reset time forward.
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if tonumber(current) == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// Check enforces a fixed-window rate limit of limit requests per window
// for namespace/key. On Redis failure it fails open (Allowed=true) rather
// than blocking legitimate traffic, matching the original service's
// check_rate_limit policy.
func (m *Manager) Check(ctx context.Context, namespace, key string, limit int64, window time.Duration) (*RateLimitInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return &RateLimitInfo{Allowed: true, Limit: limit}, nil
	}

	fullKey := m.namespacedKey(namespace, key)
	windowSecs := int64(window.Seconds())
	if windowSecs <= 0 {
		windowSecs = 1
	}

	res, err := rateLimitScript.Run(ctx, m.redis, []string{fullKey}, windowSecs).Result()
	if err != nil {
		m.logger.Warn("rate limit check failed, failing open", zap.String("key", key), zap.Error(err))
		return &RateLimitInfo{Allowed: true, Limit: limit}, nil
	}

	values, ok := res.([]any)
	if !ok || len(values) != 2 {
		return &RateLimitInfo{Allowed: true, Limit: limit}, nil
	}

	count, _ := values[0].(int64)
	ttl, _ := values[1].(int64)
	if ttl < 0 {
		ttl = windowSecs
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitInfo{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Count:     count,
		ResetAt:   time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}

// RateLimitInfo reports identifier's current count and remaining window
// ttl without consuming a request, for callers that want to show
// remaining quota alongside Check (supplemented feature, grounded on
// the original service's get_rate_limit_info).
func (m *Manager) RateLimitInfo(ctx context.Context, identifier string) (count int64, ttl time.Duration, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return 0, 0, err
	}

	fullKey := m.namespacedKey("ratelimit", identifier)
	pipe := m.redis.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.TTL(ctx, fullKey)
	if _, pipeErr := pipe.Exec(ctx); pipeErr != nil && !errors.Is(pipeErr, redis.Nil) {
		return 0, 0, fmt.Errorf("rate limit info failed: %w", pipeErr)
	}

	val, getErr := getCmd.Result()
	if getErr != nil && !errors.Is(getErr, redis.Nil) {
		return 0, 0, fmt.Errorf("rate limit info failed: %w", getErr)
	}
	if val != "" {
		count, _ = strconv.ParseInt(val, 10, 64)
	}

	remaining := ttlCmd.Val()
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, nil
}

// =============================================================================
// 🤖 prediction cache sugar
// =============================================================================

// predictionNamespace mirrors the original service's "ml:{model_name}"
// key prefix.
func predictionNamespace(modelName string) string {
	return "ml:" + modelName
}

// CachePrediction stores a model's prediction for inputHash, defaulting
// to a one-hour ttl like the original service's cache_prediction.
func (m *Manager) CachePrediction(ctx context.Context, modelName, inputHash string, prediction any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return m.SetJSON(ctx, predictionNamespace(modelName), inputHash, prediction, ttl)
}

// GetCachedPrediction fetches a cached prediction into dest, returning
// ErrCacheMiss if none is cached.
func (m *Manager) GetCachedPrediction(ctx context.Context, modelName, inputHash string, dest any) error {
	return m.GetJSON(ctx, predictionNamespace(modelName), inputHash, dest)
}

// =============================================================================
// 🏥 health / lifecycle
// =============================================================================

func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.redis.Ping(ctx).Err()
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.logger.Info("closing cache manager")

	return m.redis.Close()
}

func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			return
		}
		m.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil {
			m.logger.Error("cache health check failed", zap.Error(err))
		} else {
			m.logger.Debug("cache health check passed")
		}
		cancel()
	}
}

// =============================================================================
// 🔧 errors
// =============================================================================

// ErrCacheMiss indicates the requested key was not present.
var ErrCacheMiss = fmt.Errorf("cache miss")

// IsCacheMiss reports whether err is (or wraps) ErrCacheMiss.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
