package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"github.com/vouchlab/vouchd/internal/audit"
	"github.com/vouchlab/vouchd/internal/directory"
	"github.com/vouchlab/vouchd/internal/export"
	"github.com/vouchlab/vouchd/internal/health"
	"github.com/vouchlab/vouchd/internal/ledger"
	"github.com/vouchlab/vouchd/internal/pager"
	"github.com/vouchlab/vouchd/internal/server"
	"go.uber.org/zap"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("vouchd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	start := time.Now()

	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("vouchd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("database.url", "")
	viper.SetDefault("auth.signing_key", "")
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.cursor_ttl", "15m")
	viper.SetDefault("auth.bootstrap_secret_hash", "")
	viper.SetDefault("directory.base_url", "")
	viper.SetDefault("directory.cache_ttl", "5m")
	viper.SetDefault("audit.webhook_base_url", "")
	viper.SetDefault("health.check_interval", "5m")
	viper.SetDefault("health.probe_timeout", "10s")
	viper.SetDefault("health.fail_threshold", 3)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	signingKey := viper.GetString("auth.signing_key")
	if signingKey == "" {
		return fmt.Errorf("auth.signing_key is required (AUTH_SIGNING_KEY)")
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var store ledger.Store
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		db, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		store = ledger.NewPostgresStore(db)
	} else {
		logger.Warn("no database.url configured — using in-memory store; records do not survive restart")
		store = ledger.NewMemoryStore()
	}

	// ── Directory ────────────────────────────────────────────────────────────
	var dir directory.Directory
	dirURL := viper.GetString("directory.base_url")
	if dirURL != "" {
		cacheTTL := viper.GetDuration("directory.cache_ttl")
		dir = directory.NewCached(directory.NewHTTPDirectory(dirURL, logger), cacheTTL)
		logger.Info("directory configured", zap.String("base_url", dirURL))
	} else {
		logger.Warn("no directory.base_url configured — using empty static directory; lookups fall back to placeholders")
		dir = directory.NewStatic()
	}

	// ── Audit ────────────────────────────────────────────────────────────────
	var notifier audit.Notifier
	auditURL := viper.GetString("audit.webhook_base_url")
	if auditURL != "" {
		notifier = audit.NewWebhookNotifier(auditURL, logger)
		logger.Info("audit webhook configured", zap.String("base_url", auditURL))
	} else {
		notifier = audit.NewNopNotifier(logger)
		logger.Info("audit notifier: nop (set audit.webhook_base_url to enable)")
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	svc := ledger.NewService(store, dir, notifier, logger)
	exporter := export.NewExporter(dir, logger)
	tokens := server.NewTokenIssuer([]byte(signingKey), viper.GetDuration("auth.token_ttl"))
	cursors := pager.NewCursorCodec([]byte(signingKey), viper.GetDuration("auth.cursor_ttl"))

	srv := server.New(svc, dir, exporter, cursors, tokens, start, version, logger)
	srv.SetBootstrapHash(viper.GetString("auth.bootstrap_secret_hash"))

	// ── Upstream health ──────────────────────────────────────────────────────
	monitor := health.New([]health.Upstream{
		{Name: "directory", Endpoint: dirURL},
		{Name: "audit", Endpoint: auditURL},
	}, health.Config{
		CheckInterval: viper.GetDuration("health.check_interval"),
		ProbeTimeout:  viper.GetDuration("health.probe_timeout"),
		FailThreshold: viper.GetInt("health.fail_threshold"),
	}, logger)
	monitor.SetMetricsRecord(server.RecordUpstreamProbe)
	srv.SetUpstreamStatus(monitor.Statuses)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.Use(server.SecurityHeaders())
	router.Use(server.BodyLimit(1 << 20))

	rps := viper.GetInt("server.rate_limit_rps")
	if rps > 0 {
		router.Use(server.RateLimiter(rps, rps*2))
	}

	router.Use(server.RequestLogger(logger))
	router.Use(server.PrometheusMiddleware())

	// Public endpoints
	router.GET("/healthz", srv.Healthz)
	router.GET("/status", srv.Status)
	router.GET("/metrics", server.MetricsHandler())

	srv.Register(router.Group("/api/v1"))

	// ── Serve ────────────────────────────────────────────────────────────────
	httpPort := viper.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	probeQuit := make(chan os.Signal, 1)
	signal.Notify(probeQuit, syscall.SIGINT, syscall.SIGTERM)
	go monitor.Start(probeQuit)

	go func() {
		logger.Info("vouchd listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down vouchd...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("vouchd stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
