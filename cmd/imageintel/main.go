// ABOUTME: Entry point for the imageintel image information service.
// ABOUTME: Handles configuration parsing, wiring, and the HTTP server lifecycle.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imageintel/imageintel/internal/cache"
	"github.com/imageintel/imageintel/internal/engine"
	"github.com/imageintel/imageintel/internal/metrics"
	"github.com/imageintel/imageintel/internal/server"
	"github.com/imageintel/imageintel/internal/sources"
)

// cacheNamespace prefixes every cache key written by this service.
const cacheNamespace = "imageintel"

// Config holds the runtime configuration of the service.
type Config struct {
	Listen           string
	RedisURL         string
	TrivyServer      string
	RegistryUsername string
	RegistryPassword string
	CacheTTL         time.Duration
	LogLevel         string
	MockMode         bool
}

func main() {
	config := parseConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if level, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	app, err := NewApp(ctx, config, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize")
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}

func parseConfig() *Config {
	config := &Config{}

	flag.StringVar(&config.Listen, "listen", ":16223", "Address to listen on")
	flag.StringVar(&config.RedisURL, "redis-server", "", "Redis URL for caching (redis://host:port); empty disables caching")
	flag.StringVar(&config.TrivyServer, "trivy-server", "", "Optional trivy server to scan against")
	flag.StringVar(&config.RegistryUsername, "registry-username", "", "Registry username for manifest fetches")
	flag.StringVar(&config.RegistryPassword, "registry-password", "", "Registry password for manifest fetches")
	flag.DurationVar(&config.CacheTTL, "cache-ttl", time.Hour, "Expiry applied to every cached entry")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.MockMode, "mock", false, "Use mock sources, no network or subprocess calls")
	flag.Parse()

	// Environment variables override flags.
	if env := os.Getenv("IMAGEINTEL_LISTEN"); env != "" {
		config.Listen = env
	}
	if env := os.Getenv("IMAGEINTEL_REDIS_SERVER"); env != "" {
		config.RedisURL = env
	}
	if env := os.Getenv("IMAGEINTEL_TRIVY_SERVER"); env != "" {
		config.TrivyServer = env
	}
	if env := os.Getenv("IMAGEINTEL_REGISTRY_USERNAME"); env != "" {
		config.RegistryUsername = env
	}
	if env := os.Getenv("IMAGEINTEL_REGISTRY_PASSWORD"); env != "" {
		config.RegistryPassword = env
	}
	if env := os.Getenv("IMAGEINTEL_CACHE_TTL"); env != "" {
		if ttl, err := time.ParseDuration(env); err == nil {
			config.CacheTTL = ttl
		} else {
			log.Printf("Invalid IMAGEINTEL_CACHE_TTL: %s", env)
		}
	}
	if env := os.Getenv("IMAGEINTEL_LOG_LEVEL"); env != "" {
		config.LogLevel = env
	}
	if env := os.Getenv("IMAGEINTEL_MOCK_MODE"); env == "true" || env == "1" {
		config.MockMode = true
	}

	if config.CacheTTL <= 0 {
		log.Fatal("Cache TTL must be positive")
	}

	return config
}

// App bundles the wired service and its HTTP server.
type App struct {
	config  *Config
	logger  *logrus.Logger
	engine  *engine.Engine
	backend *cache.RedisBackend
}

// NewApp wires sources, cache, and engine according to config.
func NewApp(ctx context.Context, config *Config, logger *logrus.Logger) (*App, error) {
	logger.WithFields(logrus.Fields{
		"listen":       config.Listen,
		"redis":        config.RedisURL != "",
		"trivy_server": config.TrivyServer,
		"cache_ttl":    config.CacheTTL,
		"mock":         config.MockMode,
	}).Info("Initializing imageintel")

	sourceConfig := &sources.Config{
		MockMode:         config.MockMode,
		RegistryUsername: config.RegistryUsername,
		RegistryPassword: config.RegistryPassword,
	}

	manifests := sources.NewManifestSource(sourceConfig, logger)
	scanner := sources.NewScanSource(sourceConfig, logger)
	verifier := sources.NewVerifySource(sourceConfig, logger)

	var backend *cache.RedisBackend
	var cacheBackend cache.Backend
	if config.RedisURL != "" {
		redisBackend, err := cache.NewRedisBackend(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis backend: %w", err)
		}
		if err := redisBackend.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		logger.Info("Caching enabled")
		backend = redisBackend
		cacheBackend = redisBackend
	} else {
		logger.Info("No redis server configured, caching disabled")
	}

	c := cache.New(cacheBackend, cacheNamespace, config.CacheTTL, logger)
	eng := engine.NewEngine(manifests, scanner, verifier, c, logger)

	return &App{
		config:  config,
		logger:  logger,
		engine:  eng,
		backend: backend,
	}, nil
}

// Close releases the cache backend connection, if any.
func (a *App) Close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis connection")
		}
	}
}

// Start runs the HTTP server until ctx is canceled.
func (a *App) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/image", a.securityMiddleware(server.CreateImageHandler(a.engine, a.logger)))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", a.securityMiddleware(a.healthHandler))

	httpServer := &http.Server{
		Addr:              a.config.Listen,
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute, // scans can be slow on first fetch
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		<-ctx.Done()
		a.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	a.logger.WithField("listen", a.config.Listen).Info("Starting HTTP server")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (a *App) securityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Security headers
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'none'; object-src 'none'; frame-ancestors 'none'")

		if r.Method != http.MethodGet && r.Method != http.MethodPost && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		a.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"remote_ip": r.RemoteAddr,
		}).Debug("HTTP request received")

		next(w, r)
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok"}`)
}
