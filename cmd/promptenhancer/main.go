// =============================================================================
// promptenhancer CLI entry point
// =============================================================================
// Wires C1-C5 together and exposes the enhance/enhance_batch pipeline as a
// CLI, since an HTTP edge is explicitly out of scope.
//
// Usage:
//
//	promptenhancer enhance --text "..." [--config config.yaml]
//	promptenhancer batch   [--config config.yaml] < prompts.json
//	promptenhancer migrate [--config config.yaml]
//	promptenhancer version
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/glebarez/sqlite"

	"github.com/BaSui01/promptenhancer/classifier"
	"github.com/BaSui01/promptenhancer/config"
	"github.com/BaSui01/promptenhancer/inference"
	"github.com/BaSui01/promptenhancer/internal/cache"
	"github.com/BaSui01/promptenhancer/internal/database"
	"github.com/BaSui01/promptenhancer/orchestrator"
	"github.com/BaSui01/promptenhancer/technique"
	"github.com/BaSui01/promptenhancer/types"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "enhance":
		runEnhance(os.Args[2:])
	case "batch":
		runBatch(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🔌 core wiring
// =============================================================================

// core bundles every constructed component plus the teardown order
// spec §6's shutdown() requires: drain the orchestrator, then close the
// database pool and cache client.
type core struct {
	orchestrator *orchestrator.Orchestrator
	db           *database.PoolManager
	cache        *cache.Manager
	logger       *zap.Logger
}

func buildCore(configPath string) (*core, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := initLogger(cfg.Log)

	cacheMgr, err := cache.NewManager(cache.Config{
		Addr:                cfg.Cache.Addr,
		Password:            cfg.Cache.Password,
		DB:                  cfg.Cache.DB,
		KeyPrefix:           cfg.Cache.KeyPrefix,
		DefaultTTL:          cfg.Cache.DefaultTTL,
		MaxRetries:          cfg.Cache.MaxRetries,
		PoolSize:            cfg.Cache.PoolSize,
		MinIdleConns:        cfg.Cache.MinIdleConns,
		HealthCheckInterval: cfg.Cache.HealthCheckInterval,
		ScanBatchSize:       int64(cfg.Cache.ScanBatchSize),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	gormDB, err := openDatabase(cfg.Database, logger)
	if err != nil {
		cacheMgr.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	dbPool, err := database.NewPoolManager(gormDB, database.PoolConfig{
		MaxIdleConns:        cfg.Database.MaxIdleConns,
		MaxOpenConns:        cfg.Database.MaxOpenConns,
		ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:     cfg.Database.ConnMaxIdleTime,
		HealthCheckInterval: cfg.Database.HealthCheckInterval,
	}, logger)
	if err != nil {
		cacheMgr.Close()
		return nil, fmt.Errorf("build db pool: %w", err)
	}
	if err := dbPool.AutoMigrate(context.Background()); err != nil {
		logger.Warn("auto-migrate failed, persistence may be degraded", zap.Error(err))
	}

	inferenceClient := inference.NewClient(cfg.Inference, logger).WithPredictionCache(cacheMgr, "intent-classifier")

	registry := technique.NewDefaultRegistry(logger)
	engine := technique.NewEngine(registry, cfg.Engine, logger)

	intentClassifier := classifier.New(cfg.Classifier, inferenceClient, cacheMgr, dbPool, registry, logger)

	orch := orchestrator.New(
		intentClassifier,
		engine,
		cacheMgr,
		&historyAdapter{pool: dbPool},
		&rateLimiterAdapter{cache: cacheMgr},
		cfg.Orchestrator,
		logger,
	)

	logger.Info("promptenhancer core initialized",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	return &core{orchestrator: orch, db: dbPool, cache: cacheMgr, logger: logger}, nil
}

// shutdown drains in-flight orchestrator work and closes the pools, in
// that order, per spec §6's shutdown() contract.
func (c *core) shutdown() {
	c.orchestrator.Shutdown()
	if err := c.db.Close(); err != nil {
		c.logger.Warn("error closing database pool", zap.Error(err))
	}
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("error closing cache client", zap.Error(err))
	}
}

// historyAdapter satisfies orchestrator.HistoryWriter over the gorm
// persistence adapter, translating the orchestrator's persistence-
// agnostic HistoryRecord into an EnhancementHistory row.
type historyAdapter struct {
	pool *database.PoolManager
}

func (h *historyAdapter) SaveHistory(ctx context.Context, r orchestrator.HistoryRecord) error {
	techniques, err := json.Marshal(r.TechniquesApplied)
	if err != nil {
		techniques = []byte("[]")
	}
	return h.pool.SaveHistory(ctx, &database.EnhancementHistory{
		RequestID:         r.RequestID,
		OriginalText:      r.OriginalText,
		EnhancedText:      r.EnhancedText,
		Intent:            r.Intent,
		Complexity:        r.Complexity,
		TechniquesApplied: string(techniques),
		Confidence:        r.Confidence,
		GenerationTimeMs:  r.GenerationTimeMs,
		TokenEstimate:     r.TokenEstimate,
		Cached:            r.Cached,
	})
}

// rateLimiterAdapter satisfies orchestrator.RateLimiter over the
// Redis-backed fixed-window primitive.
type rateLimiterAdapter struct {
	cache *cache.Manager
}

func (r *rateLimiterAdapter) Check(ctx context.Context, namespace, key string, limit int64, window time.Duration) (*orchestrator.RateLimitInfo, error) {
	info, err := r.cache.Check(ctx, namespace, key, limit, window)
	if err != nil {
		return nil, err
	}
	return &orchestrator.RateLimitInfo{Allowed: info.Allowed, Remaining: info.Remaining}, nil
}

func openDatabase(dbCfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case "postgres":
		dialector = postgres.Open(dbCfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(dbCfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", dbCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	logger.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// =============================================================================
// 🎯 commands
// =============================================================================

func runEnhance(args []string) {
	fs := flag.NewFlagSet("enhance", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	text := fs.String("text", "", "Prompt text to enhance (reads stdin if empty)")
	targetModel := fs.String("target-model", "", "Target model hint")
	maxTokens := fs.Int("max-tokens", 0, "Maximum output tokens (0 = default)")
	fs.Parse(args)

	c, err := buildCore(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer c.shutdown()

	promptText := *text
	if promptText == "" {
		data, err := readAllStdin()
		if err != nil {
			fatalf("read stdin: %v", err)
		}
		promptText = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := c.orchestrator.Enhance(ctx, types.EnhanceRequest{
		Text:        promptText,
		TargetModel: *targetModel,
		MaxTokens:   *maxTokens,
	})
	if err != nil {
		fatalf("enhance failed: %v", err)
	}
	printJSON(resp)
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	c, err := buildCore(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer c.shutdown()

	var req types.BatchRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fatalf("decode batch request from stdin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := c.orchestrator.EnhanceBatch(ctx, req)
	if err != nil {
		fatalf("batch enhance failed: %v", err)
	}
	printJSON(results)
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	c, err := buildCore(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer c.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := c.db.AutoMigrate(ctx); err != nil {
		fatalf("migrate failed: %v", err)
	}
	fmt.Println("OK")
}

func printVersion() {
	fmt.Printf("promptenhancer %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`promptenhancer - prompt-enhancement dispatch core

Usage:
  promptenhancer <command> [options]

Commands:
  enhance   Run one prompt through the enhancement pipeline
  batch     Run a batch of prompts (JSON on stdin)
  migrate   Apply persistence schema migrations
  version   Show version information
  help      Show this help message

Options for 'enhance':
  --config <path>        Path to configuration file (YAML)
  --text <text>          Prompt text (reads stdin if omitted)
  --target-model <name>  Target model hint
  --max-tokens <n>       Maximum output tokens

Examples:
  promptenhancer enhance --text "Explain how binary search works"
  promptenhancer batch --config config.yaml < prompts.json
  promptenhancer migrate --config config.yaml`)
}

// =============================================================================
// 🔧 logging / helpers
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func readAllStdin() (string, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return string(buf), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("encode response: %v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
