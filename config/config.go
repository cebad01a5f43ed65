// =============================================================================
// promptenhancer configuration schema
// =============================================================================
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete configuration for the prompt-enhancement core.
type Config struct {
	Cache        CacheConfig        `yaml:"cache" env:"CACHE"`
	Database     DatabaseConfig     `yaml:"database" env:"DATABASE"`
	Inference    InferenceConfig    `yaml:"inference" env:"INFERENCE"`
	Classifier   ClassifierConfig   `yaml:"classifier" env:"CLASSIFIER"`
	Engine       EngineConfig       `yaml:"engine" env:"ENGINE"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Process      ProcessConfig      `yaml:"process" env:"PROCESS"`
}

// CacheConfig configures the Redis-backed namespaced cache (C2).
type CacheConfig struct {
	Addr                string        `yaml:"addr" env:"ADDR"`
	Password            string        `yaml:"password" env:"PASSWORD"`
	DB                  int           `yaml:"db" env:"DB"`
	KeyPrefix           string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	DefaultTTL          time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	MaxRetries          int           `yaml:"max_retries" env:"MAX_RETRIES"`
	PoolSize            int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns        int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
	ScanBatchSize       int           `yaml:"scan_batch_size" env:"SCAN_BATCH_SIZE"`
}

// DatabaseConfig configures the persistence adapter's connection pool.
type DatabaseConfig struct {
	Driver              string        `yaml:"driver" env:"DRIVER"`
	Host                string        `yaml:"host" env:"HOST"`
	Port                int           `yaml:"port" env:"PORT"`
	User                string        `yaml:"user" env:"USER"`
	Password            string        `yaml:"password" env:"PASSWORD"`
	Name                string        `yaml:"name" env:"NAME"`
	SSLMode             string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns        int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns        int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
	AcquireTimeout      time.Duration `yaml:"acquire_timeout" env:"ACQUIRE_TIMEOUT"`
}

// InferenceConfig configures the ML inference client (C1).
type InferenceConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxLen         int           `yaml:"max_len" env:"MAX_LEN"`
	MaxBatchSize   int           `yaml:"max_batch_size" env:"MAX_BATCH_SIZE"`
	HealthCacheTTL time.Duration `yaml:"health_cache_ttl" env:"HEALTH_CACHE_TTL"`

	// PredictionCacheTTL bounds how long a classify result is cached
	// under its input hash (0 disables prediction caching even when a
	// PredictionCache is wired).
	PredictionCacheTTL time.Duration `yaml:"prediction_cache_ttl" env:"PREDICTION_CACHE_TTL"`

	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`
	MaxBackoff      time.Duration `yaml:"max_backoff" env:"MAX_BACKOFF"`
	BackoffJitter   bool          `yaml:"backoff_jitter" env:"BACKOFF_JITTER"`

	BreakerThreshold        int           `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	BreakerRecoveryTimeout  time.Duration `yaml:"breaker_recovery_timeout" env:"BREAKER_RECOVERY_TIMEOUT"`
	BreakerHalfOpenMaxCalls int           `yaml:"breaker_half_open_max_calls" env:"BREAKER_HALF_OPEN_MAX_CALLS"`
}

// ClassifierConfig configures the intent classifier (C3).
type ClassifierConfig struct {
	Mode                    string        `yaml:"mode" env:"MODE"`
	LowConfidenceThreshold  float64       `yaml:"low_confidence_threshold" env:"LOW_CONFIDENCE_THRESHOLD"`
	HighConfidenceThreshold float64       `yaml:"high_confidence_threshold" env:"HIGH_CONFIDENCE_THRESHOLD"`
	MinConfidence           float64       `yaml:"min_confidence" env:"MIN_CONFIDENCE"`
	CacheTTL                time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// EngineConfig configures the technique registry + engine (C4).
type EngineConfig struct {
	CharsPerToken    float64 `yaml:"chars_per_token" env:"CHARS_PER_TOKEN"`
	TruncationMarker string  `yaml:"truncation_marker" env:"TRUNCATION_MARKER"`
	UseTiktoken      bool    `yaml:"use_tiktoken" env:"USE_TIKTOKEN"`
	TiktokenEncoding string  `yaml:"tiktoken_encoding" env:"TIKTOKEN_ENCODING"`
}

// OrchestratorConfig configures the enhancement orchestrator (C5).
type OrchestratorConfig struct {
	CacheTTL         time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	HistoryQueueSize int           `yaml:"history_queue_size" env:"HISTORY_QUEUE_SIZE"`
	HistoryWorkers   int           `yaml:"history_workers" env:"HISTORY_WORKERS"`
	BatchConcurrency int           `yaml:"batch_concurrency" env:"BATCH_CONCURRENCY"`
	RateLimitPerMin  int           `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// ProcessConfig configures process-wide lifecycle behavior.
type ProcessConfig struct {
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Validate checks cross-field invariants the defaults alone can't
// guarantee (e.g. after a YAML/env override moved a value out of range).
func (c *Config) Validate() error {
	var errs []string

	if c.Classifier.LowConfidenceThreshold < 0 || c.Classifier.LowConfidenceThreshold > 1 {
		errs = append(errs, "classifier.low_confidence_threshold must be in [0,1]")
	}
	if c.Classifier.HighConfidenceThreshold < 0 || c.Classifier.HighConfidenceThreshold > 1 {
		errs = append(errs, "classifier.high_confidence_threshold must be in [0,1]")
	}
	if c.Classifier.HighConfidenceThreshold < c.Classifier.LowConfidenceThreshold {
		errs = append(errs, "classifier.high_confidence_threshold must be >= low_confidence_threshold")
	}
	switch c.Classifier.Mode {
	case "performance_mode", "quality_mode", "adaptive":
	default:
		errs = append(errs, "classifier.mode must be one of performance_mode|quality_mode|adaptive")
	}
	if c.Inference.MaxRetries < 0 {
		errs = append(errs, "inference.max_retries must be non-negative")
	}
	if c.Orchestrator.RateLimitPerMin < 0 {
		errs = append(errs, "orchestrator.rate_limit_per_minute must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
