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
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/config"
	"github.com/clausea/clausea/internal/db"
	"github.com/clausea/clausea/internal/handler"
	"github.com/clausea/clausea/internal/job"
	"github.com/clausea/clausea/internal/legifrance"
	"github.com/clausea/clausea/internal/middleware"
	"github.com/clausea/clausea/internal/pkg/jwt"
	"github.com/clausea/clausea/internal/pkg/logutil"
	"github.com/clausea/clausea/internal/repo"
	"github.com/clausea/clausea/internal/schedule"
	"github.com/clausea/clausea/internal/service"
)

const ingestPoolSize = 4

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clausea",
		Short: "clausea backend server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run clausea server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logutil.Init(cfg.LogLevel, cfg.LogConsole); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	var tokenUser, tokenTenant string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an access token for a user and tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			if tokenUser == "" || tokenTenant == "" {
				return fmt.Errorf("--user and --tenant are required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ttl := time.Duration(cfg.JWTTTLHours) * time.Hour
			token, err := jwt.GenerateToken(tokenUser, tokenTenant, []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id claim")
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant id claim")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logger := logutil.GetLogger(context.Background())
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.Bool("legifrance", cfg.Legifrance.Enabled))

	sourceRepo := repo.NewSourceRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	queryRepo := repo.NewQueryRepo(database)
	settingsRepo := repo.NewSettingsRepo(database)

	resolver := service.NewAIResolver(cfg.AI, settingsRepo)

	var external service.ExternalSearcher
	if cfg.Legifrance.Enabled {
		client, err := legifrance.NewClient(legifrance.Config{
			ClientID:     cfg.Legifrance.ClientID,
			ClientSecret: cfg.Legifrance.ClientSecret,
			TokenURL:     cfg.Legifrance.TokenURL,
			BaseURL:      cfg.Legifrance.BaseURL,
		})
		if err != nil {
			return fmt.Errorf("init legifrance client: %w", err)
		}
		external = client
	}

	pool, err := ants.NewPool(ingestPoolSize)
	if err != nil {
		return fmt.Errorf("init ingest pool: %w", err)
	}
	defer pool.Release()

	ingestService := service.NewIngestService(sourceRepo, chunkRepo, resolver, pool, cfg.AI.MaxInputChars)
	retrievalService := service.NewRetrievalService(chunkRepo, resolver, external)
	answerService := service.NewAnswerService(sourceRepo, queryRepo, resolver)
	settingsService := service.NewSettingsService(settingsRepo)

	deps := handler.RouterDeps{
		Ask:       handler.NewAskHandler(resolver, retrievalService, answerService),
		Sources:   handler.NewSourceHandler(ingestService),
		Settings:  handler.NewSettingsHandler(settingsService),
		Queries:   handler.NewQueryHandler(answerService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(cfg.CORSOrigins))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))
	handler.RegisterRoutes(engine.Group("/api/v1"), deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if spec := cfg.Jobs.EmbeddingBackfillSpec; spec != "" {
		backfill := job.NewEmbeddingBackfillJob(ingestService, cfg.Jobs.EmbeddingBackfillDelay)
		if err := scheduler.AddJob(backfill, spec); err != nil {
			return fmt.Errorf("schedule backfill job: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler: engine,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
