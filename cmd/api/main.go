package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/api/handlers"
	"github.com/stockwise/stockwizard/internal/cache/redis"
	"github.com/stockwise/stockwizard/internal/chat"
	"github.com/stockwise/stockwizard/internal/index"
	"github.com/stockwise/stockwizard/internal/llm"
	"github.com/stockwise/stockwizard/internal/metrics"
	"github.com/stockwise/stockwizard/internal/middleware/security"
	"github.com/stockwise/stockwizard/internal/middleware/validation"
	"github.com/stockwise/stockwizard/internal/search/web"
	"github.com/stockwise/stockwizard/internal/storage/sqlite"
	"github.com/stockwise/stockwizard/internal/storage/supabase"
	"github.com/stockwise/stockwizard/pkg/config"
	appLogger "github.com/stockwise/stockwizard/pkg/logger"
	"github.com/stockwise/stockwizard/pkg/retry"
	"github.com/stockwise/stockwizard/pkg/workerpool"
)

type closingStore interface {
	chat.Store
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting StockWizard API Server")
	metrics.Init()

	store, err := newStore(cfg.Storage)
	if err != nil {
		appLogger.Fatal("Failed to create chat store", zap.Error(err))
	}
	defer store.Close()

	pool := workerpool.New("engines", cfg.Workers.MaxInFlight, appLogger.GetLogger())

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	}, pool)

	searchClient := web.NewClient(web.Config{
		APIKey:     cfg.Search.SerpAPIKey,
		Endpoint:   cfg.Search.Endpoint,
		Engine:     cfg.Search.Engine,
		MaxResults: cfg.Search.MaxResults,
		Timeout:    time.Duration(cfg.Search.TimeoutSec) * time.Second,
	}, pool)
	if cfg.Search.SerpAPIKey == "" {
		appLogger.Warn("SERPAPIKEY is not set; web searches will return the error placeholder")
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Search cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			searchClient.WithCache(redisClient, time.Duration(cfg.Search.CacheTTLSec)*time.Second)
		}
	}

	retriever := chat.NewRetriever(nil, cfg.Index.TopK)
	if cfg.Index.Enabled && cfg.Chat.DocumentContext {
		if idx := loadIndex(cfg.Index); idx != nil {
			retriever = chat.NewRetriever(idx, cfg.Index.TopK)
		}
	}

	svc := chat.NewService(searchClient, llmClient, store, retriever, chat.Keywords{
		Search:          cfg.Chat.SearchKeyword,
		Context:         cfg.Chat.ContextKeyword,
		DocumentContext: cfg.Chat.DocumentContext,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "*",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		MaxQuestionLength: cfg.Server.MaxQuestionLen,
		Logger:            appLogger.GetLogger(),
	}))

	app.Get("/metrics", metrics.MetricsHandler())
	handlers.NewWebSocketHandler(svc).Register(app, "/chat/ws")
	handlers.NewChatHandler(svc).Register(app)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Wait(ctx); err != nil {
		appLogger.Warn("Pending chat records were not all written", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func newStore(cfg config.StorageConfig) (closingStore, error) {
	switch cfg.Driver {
	case "supabase":
		return supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Table)
	case "sqlite":
		client, err := sqlite.NewClient(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// loadIndex returns nil when the reference document cannot be indexed; the
// server then answers without document context.
func loadIndex(cfg config.IndexConfig) *index.Index {
	embedding, err := index.NewEmbeddingFunc(index.EmbedderConfig{
		Kind:    cfg.Embedder,
		Model:   cfg.EmbeddingModel,
		BaseURL: cfg.EmbeddingURL,
		APIKey:  cfg.EmbeddingKey,
	})
	if err != nil {
		appLogger.Warn("Document index disabled", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.LoadAttempts
	retryCfg.Logger = appLogger.GetLogger()

	idx, err := retry.DoWithResult(ctx, retryCfg, func(ctx context.Context) (*index.Index, error) {
		idx, err := index.Load(ctx, index.Options{
			Path:           cfg.DocumentPath,
			CollectionName: cfg.CollectionName,
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
			Embedding:      embedding,
		})
		// only embedding failures can heal by waiting
		if errors.Is(err, index.ErrEmptyDocument) || errors.Is(err, index.ErrUnsupportedFormat) || errors.Is(err, fs.ErrNotExist) {
			return nil, retry.Permanent(err)
		}
		return idx, err
	})
	if err != nil {
		appLogger.Warn("Document index disabled", zap.String("path", cfg.DocumentPath), zap.Error(err))
		return nil
	}
	return idx
}
