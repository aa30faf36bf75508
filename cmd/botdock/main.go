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

	"github.com/botdock/botdock/internal/ai"
	"github.com/botdock/botdock/internal/blobstore"
	"github.com/botdock/botdock/internal/config"
	"github.com/botdock/botdock/internal/db"
	"github.com/botdock/botdock/internal/extract"
	"github.com/botdock/botdock/internal/handler"
	"github.com/botdock/botdock/internal/index"
	"github.com/botdock/botdock/internal/ingest"
	"github.com/botdock/botdock/internal/middleware"
	"github.com/botdock/botdock/internal/repo"
	"github.com/botdock/botdock/internal/schedule"
	"github.com/botdock/botdock/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "botdock",
		Short: "botdock chatbot backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the botdock server",
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

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("blob_store", cfg.BlobStore.Type),
		zap.String("embedding_provider", cfg.AI.Embedding.Provider),
	)

	chatbotRepo := repo.NewChatbotRepo(conn)
	documentRepo := repo.NewDocumentRepo(conn)
	vectorStore := index.NewStore(conn)
	if err := vectorStore.ValidateSchema(context.Background(), cfg.AI.Embedding.Dimension); err != nil {
		return fmt.Errorf("embedding dimension check: %w", err)
	}

	blobs, err := blobstore.New(cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.Embedding.Provider, cfg.AI.Embedding.Args)
	if err != nil {
		return fmt.Errorf("init embedding provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.Embedding.Model, cfg.AI.Embedding.Dimension)

	providers := make(map[string]ai.IProvider, len(cfg.AI.Generation))
	for family, genCfg := range cfg.AI.Generation {
		provider, err := ai.NewProvider(family, genCfg.Args)
		if err != nil {
			return fmt.Errorf("init provider %s: %w", family, err)
		}
		providers[provider.Name()] = provider
	}

	pipeline := ingest.NewPipeline(blobs, documentRepo, vectorStore, extract.New(), embedder, ingest.Options{
		MaxChunkChars:   cfg.Ingest.MaxChunkChars,
		OverlapChars:    cfg.Ingest.OverlapChars,
		DownloadRetries: cfg.Ingest.DownloadRetries,
		ChunkRetries:    cfg.Ingest.ChunkRetries,
		ChunkWorkers:    cfg.Ingest.ChunkWorkers,
	})
	dispatcher := ingest.NewDispatcher(pipeline, cfg.Ingest.Workers, 0)

	chatbotService := service.NewChatbotService(chatbotRepo)
	documentService := service.NewDocumentService(documentRepo, chatbotRepo, blobs, vectorStore, dispatcher)
	chatService := service.NewChatService(chatbotRepo, embedder, vectorStore, providers, service.ChatOptions{
		TopK:    cfg.Retrieval.TopK,
		Timeout: time.Duration(cfg.ChatTimeoutS) * time.Second,
	})

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(chatService),
		Chatbots:      handler.NewChatbotHandler(chatbotService),
		Documents:     handler.NewDocumentHandler(documentService),
		JWTSecret:     []byte(cfg.JWTSecret),
		ChatRateLimit: time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	scheduler := schedule.NewCronScheduler()
	sweep := schedule.NewSweepJob(documentRepo, dispatcher, time.Duration(cfg.Ingest.StaleAfterS)*time.Second)
	if err := scheduler.AddJob(sweep, cfg.Ingest.SweepSpec); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
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
