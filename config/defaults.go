// =============================================================================
// default configuration
// =============================================================================
package config

import "time"

// DefaultConfig returns a complete, internally-consistent Config.
func DefaultConfig() *Config {
	return &Config{
		Cache:        DefaultCacheConfig(),
		Database:     DefaultDatabaseConfig(),
		Inference:    DefaultInferenceConfig(),
		Classifier:   DefaultClassifierConfig(),
		Engine:       DefaultEngineConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		Log:          DefaultLogConfig(),
		Process:      DefaultProcessConfig(),
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		KeyPrefix:           "promptenhancer",
		DefaultTTL:          1 * time.Hour,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
		ScanBatchSize:       200,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:              "postgres",
		Host:                "localhost",
		Port:                5432,
		User:                "promptenhancer",
		Password:            "",
		Name:                "promptenhancer",
		SSLMode:             "disable",
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     5 * time.Minute,
		ConnMaxIdleTime:     2 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		AcquireTimeout:      5 * time.Second,
	}
}

// DefaultInferenceConfig carries the circuit breaker and retry defaults
// spec.md §5 names for the ML inference client (5 failures trip the
// breaker, 30s before a half-open trial, bounded exponential backoff).
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		BaseURL:        "http://localhost:8000",
		APIKey:         "",
		Timeout:        10 * time.Second,
		MaxLen:         8192,
		MaxBatchSize:   50,
		HealthCacheTTL: 30 * time.Second,

		PredictionCacheTTL: time.Hour,

		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffJitter:  true,

		BreakerThreshold:        5,
		BreakerRecoveryTimeout:  30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// DefaultClassifierConfig mirrors spec.md §3's adaptive-mode thresholds:
// below 0.5 confidence the rules result is untrustworthy enough to defer
// to ML; above 0.85 the rules result is trusted outright.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Mode:                    "adaptive",
		LowConfidenceThreshold:  0.5,
		HighConfidenceThreshold: 0.85,
		MinConfidence:           0.3,
		CacheTTL:                15 * time.Minute,
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CharsPerToken:    4.0,
		TruncationMarker: "...",
		UseTiktoken:      true,
		TiktokenEncoding: "cl100k_base",
	}
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		CacheTTL:         1 * time.Hour,
		RequestTimeout:   30 * time.Second,
		HistoryQueueSize: 1000,
		HistoryWorkers:   2,
		BatchConcurrency: 8,
		RateLimitPerMin:  60,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultProcessConfig() ProcessConfig {
	return ProcessConfig{
		ShutdownTimeout: 15 * time.Second,
	}
}
