// Package main is the entry point for the classifieds taxonomy server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"classifieds/internal/cache"
	"classifieds/internal/config"
	"classifieds/internal/database"
	"classifieds/internal/handlers"
	"classifieds/internal/hierarchy"
	"classifieds/internal/metrics"
	"classifieds/internal/middleware"
	"classifieds/internal/router"
	"classifieds/internal/store"
)

func main() {
	// "classifieds hash-token <token>" prints a value for ADMIN_TOKEN_HASH.
	if len(os.Args) == 3 && os.Args[1] == "hash-token" {
		hash, err := middleware.HashToken(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash-token:", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"cache_ttl", cfg.CacheTTL.String(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup

	// Valkey is optional: without it every instance only sees its own writes
	// until the cache TTL runs out.
	var broadcaster *cache.Broadcaster
	if cfg.ValkeyEnabled() {
		valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			slog.Error("failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		defer valkeyClient.Close()
		broadcaster = cache.NewBroadcaster(valkeyClient)
	} else {
		slog.Warn("valkey not configured, cross-instance cache invalidation disabled")
	}

	if cfg.AdminTokenHash == "" {
		slog.Warn("ADMIN_TOKEN_HASH not set, admin api disabled")
	}

	collector := metrics.NewCollector("classifieds")

	// One service per taxonomy, each with its own cache.
	newService := func(s hierarchy.Store, domain string, typed bool) *hierarchy.Service {
		c := hierarchy.NewCache(domain, cfg.CacheTTL, hierarchy.WithObserver(collector))
		if cfg.CacheSweepInterval > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.RunJanitor(ctx, cfg.CacheSweepInterval)
			}()
		}
		opts := hierarchy.Options{Domain: domain, Typed: typed}
		if broadcaster != nil {
			opts.Notifier = broadcaster
		}
		return hierarchy.NewService(s, c, opts)
	}

	categoryStore := store.NewCategoryStore(db)
	locationStore := store.NewLocationStore(db)
	categories := newService(categoryStore, categoryStore.Table(), false)
	locations := newService(locationStore, locationStore.Table(), true)
	services := map[string]*hierarchy.Service{
		categories.Domain(): categories,
		locations.Domain():  locations,
	}

	if broadcaster != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			broadcaster.Listen(ctx, func(domain string) {
				if svc, ok := services[domain]; ok {
					svc.ClearCache()
				}
			})
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.AdminRateLimit, time.Minute)
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Run(ctx, 5*time.Minute)
	}()

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Deps{
		Taxonomy:       handlers.NewTaxonomy(store.NewCacheLogStore(db), categories, locations),
		Health:         handlers.NewHealth(db),
		Metrics:        collector,
		AdminTokenHash: cfg.AdminTokenHash,
		AdminLimiter:   limiter,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop the janitors, limiter, and listener before the connections
	// they use are closed by the deferred calls.
	stop()
	wg.Wait()
	for _, svc := range services {
		svc.ClearCache()
	}

	slog.Info("server stopped gracefully")
}
