// Command server runs the full engine: ingestion loop, query API and
// metrics endpoint in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dex-price-engine/internal/api"
	"dex-price-engine/internal/chain"
	"dex-price-engine/internal/config"
	"dex-price-engine/internal/ingestion"
	"dex-price-engine/internal/observability"
	"dex-price-engine/internal/storage"
	"dex-price-engine/internal/storage/memory"
	"dex-price-engine/internal/storage/migrations"
	"dex-price-engine/internal/storage/postgres"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to JSON config file")
		rpcEndpoint = flag.String("rpc-endpoint", "", "Chain JSON-RPC endpoint (overrides config)")
		wsEndpoint  = flag.String("ws-endpoint", "", "Chain WebSocket endpoint for pool events (overrides config)")
		postgresDSN = flag.String("postgres-dsn", "", "Postgres connection string (overrides config)")
		useMemory   = flag.Bool("use-memory", false, "Use in-memory storage instead of Postgres")
		apiAddr     = flag.String("api-addr", "", "Query API listen address (overrides config)")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if *useMemory {
		os.Setenv("ENGINE_USE_MEMORY", "true")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *rpcEndpoint != "" {
		cfg.RPCEndpoint = *rpcEndpoint
	}
	if *wsEndpoint != "" {
		cfg.WSEndpoint = *wsEndpoint
	}
	if *postgresDSN != "" {
		cfg.PostgresDSN = *postgresDSN
	}
	if *apiAddr != "" {
		cfg.APIAddr = *apiAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		tokenStore   storage.TokenStore
		pairStore    storage.PairStore
		pairHistory  storage.PairHistoryStore
		tokenHistory storage.TokenHistoryStore
	)
	if cfg.UseMemory {
		logger.Println("Using in-memory storage")
		tokenStore = memory.NewTokenStore()
		pairStore = memory.NewPairStore()
		pairHistory = memory.NewPairHistoryStore()
		tokenHistory = memory.NewTokenHistoryStore()
	} else {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Println("Postgres migrations applied")

		tokenStore = postgres.NewTokenStore(pool)
		pairStore = postgres.NewPairStore(pool)
		pairHistory = postgres.NewPairHistoryStore(pool)
		tokenHistory = postgres.NewTokenHistoryStore(pool)
	}

	metrics := observability.NewMetrics("")

	reader := chain.NewHTTPClient(cfg.RPCEndpoint, chain.WithTimeout(cfg.RPCTimeout.Std()))

	var feed chain.EventFeed
	if cfg.WSEndpoint != "" {
		feed = chain.NewWSFeed(cfg.WSEndpoint, nil, logger)
	}

	scheduler := ingestion.NewScheduler(ingestion.SchedulerOptions{
		Reader:       reader,
		Feed:         feed,
		TokenStore:   tokenStore,
		PairStore:    pairStore,
		PairHistory:  pairHistory,
		TokenHistory: tokenHistory,
		Interval:     cfg.Interval.Std(),
		Retention:    cfg.Retention.Std(),
		Bucket:       cfg.Bucket.Std(),
		RPCTimeout:   cfg.RPCTimeout.Std(),
		MaxInFlight:  cfg.MaxInFlight,
		QuoteAssets:  cfg.QuoteAssets,
		Metrics:      metrics,
		Logger:       logger,
	})

	server := api.NewServer(api.ServerOptions{
		TokenStore:   tokenStore,
		PairStore:    pairStore,
		PairHistory:  pairHistory,
		TokenHistory: tokenHistory,
		Metrics:      metrics,
		Logger:       logger,
		LastTick:     scheduler.LastTick,
	})

	apiSrv := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      server.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", observability.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	errCh := make(chan error, 3)
	go func() {
		logger.Printf("Query API listening on %s", cfg.APIAddr)
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Printf("Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := scheduler.Run(ctx); !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Println("Shutdown signal received")
	case err := <-errCh:
		logger.Printf("Fatal error: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Error shutting down query API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Error shutting down metrics server: %v", err)
	}
	logger.Println("Server stopped")
}
