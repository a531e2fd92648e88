// Package main is the entry point for the document Q&A server binary. It
// dispatches three subcommands, serve, migrate, and version, via a simple
// switch on os.Args so the binary's full CLI surface is readable in one place
// without requiring a cobra dependency. The serve command runs auto-migration
// on startup so freshly deployed containers never need a separate migration
// step.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maritime-ai/maritime-ai-backend/internal/ai"
	"github.com/maritime-ai/maritime-ai-backend/internal/api"
	"github.com/maritime-ai/maritime-ai-backend/internal/artifacts"
	"github.com/maritime-ai/maritime-ai-backend/internal/config"
	"github.com/maritime-ai/maritime-ai-backend/internal/db"
	"github.com/maritime-ai/maritime-ai-backend/internal/safego"
	"github.com/maritime-ai/maritime-ai-backend/internal/search"
	"github.com/maritime-ai/maritime-ai-backend/internal/storage"
	"github.com/maritime-ai/maritime-ai-backend/internal/telemetry"

	// Storage backends register themselves via init().
	_ "github.com/maritime-ai/maritime-ai-backend/internal/storage/gcs"
	_ "github.com/maritime-ai/maritime-ai-backend/internal/storage/local"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "version":
		fmt.Printf("maritime-ai-backend v%s\n", api.Version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Configure the structured logger before anything else logs.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set (MAI_AUTH_JWT_SECRET)")
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database); err == nil {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	// Storage failure is survivable: the artifact store runs on its in-memory
	// fallback until the backend is fixed and the process restarted.
	var backend storage.Storage
	backend, err = storage.NewStorage(cfg)
	if err != nil {
		slog.Error("storage backend unavailable, starting in degraded mode", "error", err)
		backend = nil
	} else {
		slog.Info("storage backend initialized", "backend", cfg.Storage.DefaultBackend)
	}
	store := artifacts.New(backend, cfg.Storage.GCS.Bucket)

	// The retrieval collaborator is optional; without it chat answers fall
	// back to the fixed no-documents sentence.
	var searcher search.Searcher
	if cfg.Search.Enabled {
		client, err := search.NewDiscoveryClient(context.Background(), &cfg.Search)
		if err != nil {
			slog.Error("search client unavailable, continuing without retrieval", "error", err)
		} else {
			searcher = client
			slog.Info("search client initialized", "data_store", cfg.Search.DataStoreID)
		}
	}
	builder := search.NewBuilder(searcher)

	composer := ai.NewComposer(
		openAICapability(cfg),
		anthropicCapability(cfg),
	)

	stopDBStats := make(chan struct{})
	safego.Go(func() {
		telemetry.PollDBStats(database, 15*time.Second, stopDBStats)
	})

	// Metrics are served on a dedicated port so the scrape path stays off the
	// public ingress and outside the rate limiters.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices, err := api.NewRouter(cfg, database, api.Dependencies{
		Artifacts: store,
		Retrieval: builder,
		Composer:  composer,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"storage_backend", cfg.Storage.DefaultBackend,
			"search_enabled", cfg.Search.Enabled)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	close(stopDBStats)
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// openAICapability builds the primary generation stage from configuration.
// A missing API key yields an unavailable stage, not a startup failure.
func openAICapability(cfg *config.Config) ai.Capability {
	gen, err := ai.NewOpenAIGenerator(&cfg.AI.OpenAI, generationConfig(cfg))
	if err != nil {
		return ai.Unavailable(err.Error())
	}
	return ai.Available(gen)
}

// anthropicCapability builds the fallback generation stage.
func anthropicCapability(cfg *config.Config) ai.Capability {
	gen, err := ai.NewAnthropicGenerator(&cfg.AI.Anthropic, generationConfig(cfg))
	if err != nil {
		return ai.Unavailable(err.Error())
	}
	return ai.Available(gen)
}

func generationConfig(cfg *config.Config) ai.GenerationConfig {
	return ai.GenerationConfig{
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Temperature:     cfg.AI.Temperature,
	}
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	log.Printf("Migration completed successfully. Current version: %d (dirty: %v)", version, dirty)
	return nil
}
