package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"sheger-walk-admin/internal/cache"
	"sheger-walk-admin/internal/config"
	"sheger-walk-admin/internal/database"
	"sheger-walk-admin/internal/events"
	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/handler"
	"sheger-walk-admin/internal/logger"
	"sheger-walk-admin/internal/middleware"
	"sheger-walk-admin/internal/service"
	"sheger-walk-admin/internal/tracing"
	"sheger-walk-admin/internal/upstream"
)

func main() {
	configFile := flag.String("config", "", "Path to a JSON or YAML config file")
	envFile := flag.String("env", ".env", "Path to a .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warning("Could not load %s: %v", *envFile, err)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.InitTracing(cfg.Tracing)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize %s cache: %v", cfg.Cache.Backend, err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	flags := features.NewFromConfig(cfg)
	// Hooks check event_hooks_enabled on every event so the flag can be
	// flipped at runtime.
	eventManager := events.NewManager(true)
	defer eventManager.Shutdown()

	svc := service.NewService(upstream.NewClient(cfg.Upstream), db,
		service.WithCache(store, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		service.WithEvents(eventManager),
		service.WithFeatures(flags),
		service.WithTracer(tracer),
		service.WithUploadLimits(service.UploadLimits{
			ChallengeImage: cfg.Security.MaxChallengeImageSize,
			ProviderLogo:   cfg.Security.MaxProviderLogoSize,
		}),
	)
	svc.RegisterHooks()

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.Security.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", handler.ViewIDHeader},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.TracingMiddleware())

	h.Routes(r)

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		svc.RunLeaderboardRefresh(refreshCtx, time.Duration(cfg.Leaderboard.RefreshSeconds)*time.Second)
	}()

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol := "HTTP"
	if cfg.Server.EnableTLS {
		protocol = "HTTPS"
	}
	logger.Success("Starting %s server on %s", protocol, server.Addr)
	logger.Info("Upstream API: %s", cfg.Upstream.BaseURL)
	logger.Info("Cache: %s (ttl %ds)", cfg.Cache.Backend, cfg.Cache.TTLSeconds)
	logger.Info("Audit database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	serveErr := make(chan error, 1)
	go func() {
		if cfg.Server.EnableTLS {
			serveErr <- server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
			return
		}
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	cancelRefresh()
	<-refreshDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error closing server: %v", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error flushing traces: %v", err)
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
