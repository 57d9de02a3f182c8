package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/memhubio/memhub/internal/ai"
	"github.com/memhubio/memhub/internal/config"
	"github.com/memhubio/memhub/internal/db"
	"github.com/memhubio/memhub/internal/embedcache"
	"github.com/memhubio/memhub/internal/extract"
	"github.com/memhubio/memhub/internal/handler"
	"github.com/memhubio/memhub/internal/job"
	"github.com/memhubio/memhub/internal/middleware"
	"github.com/memhubio/memhub/internal/repo"
	"github.com/memhubio/memhub/internal/schedule"
	"github.com/memhubio/memhub/internal/service"
)

const embedLruSize = 2048

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "memhub",
		Short: "memhub memory server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run memhub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbConn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(dbConn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, dbConn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, dbConn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("extract_strategy", cfg.Extract.Strategy),
	)

	conversationRepo := repo.NewConversationRepo(dbConn)
	entityRepo := repo.NewEntityRepo(dbConn)
	relationshipRepo := repo.NewRelationshipRepo(dbConn)
	summaryRepo := repo.NewSummaryRepo(dbConn)
	cacheRepo := repo.NewEmbeddingCacheRepo(dbConn)

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedderChain := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	embedderChain = embedcache.WrapDBCacheToEmbedder(embedderChain, cacheRepo)
	embedderChain = embedcache.WrapLruCacheToEmbedder(embedderChain, embedLruSize, time.Hour)
	embedder := ai.NewSafeEmbedder(embedderChain, cfg.AI.Dimensions)

	// The generator is optional; without it session summaries stay off.
	var generator ai.IGenerator
	if cfg.AI.Model != "" {
		aiProvider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
		if err != nil {
			logutil.GetLogger(context.Background()).Warn("text generator unavailable", zap.Error(err))
		} else {
			generator = ai.NewGenerator(aiProvider, cfg.AI.Model)
		}
	}

	extractor := extract.New(cfg.Extract.Strategy)
	logutil.GetLogger(context.Background()).Info("extractor ready", zap.String("strategy", extractor.Name()))

	memoryService := service.NewMemoryService(dbConn, conversationRepo, entityRepo, relationshipRepo, embedder, extractor)
	retrievalService := service.NewRetrievalService(conversationRepo, entityRepo, summaryRepo, embedder,
		cfg.Retrieval.DefaultThreshold, cfg.Retrieval.DefaultLimit)
	graphService := service.NewGraphService(entityRepo, relationshipRepo)
	summaryService := service.NewSummaryService(conversationRepo, summaryRepo, generator, embedder)

	deps := handler.RouterDeps{
		Memory:    handler.NewMemoryHandler(memoryService, retrievalService),
		Graph:     handler.NewGraphHandler(memoryService, graphService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
			middleware.RateLimit(time.Duration(cfg.RateLimitMS)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if !cfg.Jobs.DisableSessionSummary {
		summaryJob := job.NewSessionSummaryJob(summaryService, cfg.Jobs.SessionIdleMinutes)
		if err := scheduler.AddJob(summaryJob, cfg.Jobs.SessionSummarySpec); err != nil {
			return fmt.Errorf("schedule session summary: %w", err)
		}
	}
	cleanupJob := job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheRetentionDays)
	if err := scheduler.AddJob(cleanupJob, cfg.Jobs.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
