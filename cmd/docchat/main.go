package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/docchat-dev/docchat/internal/ai"
	"github.com/docchat-dev/docchat/internal/config"
	"github.com/docchat-dev/docchat/internal/conversation"
	"github.com/docchat-dev/docchat/internal/embedcache"
	"github.com/docchat-dev/docchat/internal/filestore"
	"github.com/docchat-dev/docchat/internal/handler"
	"github.com/docchat-dev/docchat/internal/job"
	"github.com/docchat-dev/docchat/internal/middleware"
	"github.com/docchat-dev/docchat/internal/rag"
	"github.com/docchat-dev/docchat/internal/schedule"
	"github.com/docchat-dev/docchat/internal/service"
	"github.com/docchat-dev/docchat/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docchat",
		Short: "document chatbot service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docchat server",
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
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logutil.GetLogger(ctx)

	log.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	factory := ai.NewFactory(
		ai.Kind(cfg.AI.Provider),
		ai.Config{APIKey: cfg.AI.APIKey, Model: cfg.AI.Model, BaseURL: cfg.AI.BaseURL},
		ai.Kind(cfg.Embedding.Provider),
		ai.Config{APIKey: cfg.Embedding.APIKey, Model: cfg.Embedding.Model, BaseURL: cfg.Embedding.BaseURL},
	)

	var store *vectorstore.Manager
	opener := func(ctx context.Context, embedder ai.IEmbeddingProvider) (rag.VectorStore, error) {
		embedder = embedcache.WrapLruCache(
			embedder,
			cfg.Embedding.CacheSize,
			time.Duration(cfg.Embedding.CacheTTLMinutes)*time.Minute,
		)
		m, err := vectorstore.Open(ctx, vectorstore.Params{
			DSN:        cfg.Database.DSN,
			Dimensions: cfg.Database.EmbeddingDimensions,
		}, embedder)
		if err != nil {
			return nil, err
		}
		store = m
		return m, nil
	}

	engine := rag.NewEngine(factory, opener, rag.Options{
		ChunkSize:      cfg.RAG.ChunkSize,
		ChunkOverlap:   cfg.RAG.ChunkOverlap,
		TopK:           cfg.RAG.TopK,
		ScoreThreshold: cfg.RAG.ScoreThreshold,
	})
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("init rag engine: %w", err)
	}
	defer store.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	archive, err := newArchive(cfg)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	conversations := conversation.NewStore(redisClient)
	chatService := service.NewChatService(engine, conversations)
	documentService := service.NewDocumentService(engine, store, archive, cfg.Documents.Dir, cfg.Documents.MaxFileSizeMB)

	deps := handler.RouterDeps{
		Chat:           handler.NewChatHandler(chatService),
		Documents:      handler.NewDocumentHandler(documentService),
		Health:         handler.NewHealthHandler(engine),
		JWTSecret:      []byte(cfg.JWTSecret),
		ChatRateWindow: time.Second,
	}

	scheduler := schedule.NewScheduler()
	if err := scheduler.AddJob(job.NewIndexStatsJob(store), "0 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewDocumentCleanupJob(store, cfg.Documents.Dir, 24*time.Hour), "30 3 * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	log.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := httpEngine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}

func newArchive(cfg *config.Config) (filestore.Store, error) {
	switch cfg.FileStore.Type {
	case "s3":
		return filestore.New("s3", cfg.FileStore.S3)
	default:
		return filestore.New("local", map[string]interface{}{"dir": cfg.FileStore.Dir})
	}
}
