// Package api wires together all HTTP routes for the document Q&A backend.
//
// Route grouping philosophy:
//   - /health, /ready, and /version are unauthenticated so load balancers and
//     deployment tooling can probe the service without credentials.
//   - /api/v1/auth carries its own stricter rate limit because login and
//     register are the brute-force targets.
//   - Everything else under /api/v1 requires a verified bearer token; the
//     tenant id used by every downstream layer comes from that token only.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/maritime-ai/maritime-ai-backend/internal/api/accounts"
	"github.com/maritime-ai/maritime-ai-backend/internal/api/chat"
	"github.com/maritime-ai/maritime-ai-backend/internal/api/documents"
	"github.com/maritime-ai/maritime-ai-backend/internal/artifacts"
	"github.com/maritime-ai/maritime-ai-backend/internal/auth"
	"github.com/maritime-ai/maritime-ai-backend/internal/config"
	"github.com/maritime-ai/maritime-ai-backend/internal/db/repositories"
	"github.com/maritime-ai/maritime-ai-backend/internal/middleware"
)

// Version is the reported service version. Overridable at build time with
// -ldflags "-X .../internal/api.Version=v1.2.3".
var Version = "0.1.0"

// Dependencies carries the collaborators constructed in main: the artifact
// store and the retrieval/generation pipeline. They are built outside the
// router because their construction depends on credentials and feature flags.
type Dependencies struct {
	Artifacts *artifacts.Store
	Retrieval chat.ContextBuilder
	Composer  chat.AnswerComposer
}

// BackgroundServices holds resources that must be stopped during graceful
// shutdown, after the HTTP server has drained in-flight requests.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines owned by the router.
func (bg *BackgroundServices) Shutdown() {
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("router background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, database *sql.DB, deps Dependencies) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	userRepo := repositories.NewUserRepository(database)
	tenantRepo := repositories.NewTenantRepository(sqlx.NewDb(database, "postgres"))
	authService := auth.NewService(userRepo, tenantRepo, tokens, deps.Artifacts, cfg.Auth.BcryptCost)

	accountsHandler := accounts.NewHandler(authService)
	documentsHandler := documents.NewHandler(deps.Artifacts, cfg.Server.MaxUploadBytes)
	chatHandler := chat.NewHandler(deps.Retrieval, deps.Composer)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(database))
	router.GET("/ready", readinessHandler(database, deps.Artifacts))
	router.GET("/version", versionHandler())

	bg := &BackgroundServices{}

	// Rate limiting is config-driven: the authenticated-API throughput comes
	// from security.rate_limiting, and the whole layer collapses to a no-op
	// when disabled. Auth and upload keep their stricter built-in presets.
	rlc := cfg.Security.RateLimiting
	limit := func(limitCfg middleware.RateLimitConfig) gin.HandlerFunc {
		if !rlc.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		rl := middleware.NewRateLimiter(limitCfg)
		bg.rateLimiters = append(bg.rateLimiters, rl)
		return middleware.RateLimitMiddleware(rl)
	}

	authLimit := limit(middleware.AuthRateLimitConfig())
	generalLimit := limit(middleware.GeneralRateLimitConfig(rlc.RequestsPerMinute, rlc.Burst))
	uploadLimit := limit(middleware.UploadRateLimitConfig())

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		authGroup.Use(authLimit)
		{
			authGroup.POST("/login", accountsHandler.Login)
			authGroup.POST("/register", accountsHandler.Register)
			authGroup.GET("/me", middleware.AuthMiddleware(tokens), accountsHandler.Me)
		}

		authenticated := apiV1.Group("")
		authenticated.Use(middleware.AuthMiddleware(tokens))
		authenticated.Use(generalLimit)
		{
			docs := authenticated.Group("/documents")
			{
				docs.GET("", documentsHandler.List)
				docs.POST("", uploadLimit, documentsHandler.Upload)
				docs.POST("/batch", uploadLimit, documentsHandler.UploadBatch)
				docs.GET("/:id/download", documentsHandler.Download)
				docs.DELETE("/:id", documentsHandler.Delete)
			}

			authenticated.POST("/chat", chatHandler.Ask)
		}
	}

	return router, bg, nil
}

// healthCheckHandler is the liveness probe: process up, database reachable.
func healthCheckHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler reports whether the service should receive traffic. A
// degraded artifact store still serves requests from its fallback, so it
// reports ready with the degraded flag surfaced for dashboards.
func readinessHandler(database *sql.DB, store *artifacts.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := database.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if store.Degraded() {
			checks["storage"] = "degraded"
		} else {
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version.
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware emits one structured slog record per request. Output format
// (json or text) follows the global handler configured in telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS for the browser frontend.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
