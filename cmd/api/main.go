package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nextpage/internal/catalog"
	"nextpage/internal/config"
	"nextpage/internal/httpx"
	"nextpage/internal/kv"
	"nextpage/internal/library"
	"nextpage/internal/logging"
	"nextpage/internal/recommend"
	"nextpage/internal/storefront"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config.LoadEnvFiles()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := kv.Open(ctx, kv.Options{
		Driver:      cfg.Storage.Driver,
		BadgerPath:  cfg.Storage.BadgerPath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		Timeout:     cfg.Storage.Timeout,
	})
	if err != nil {
		return fmt.Errorf("open %s storage (%s): %w", cfg.Storage.Driver, config.RedactedDSN(cfg.Storage.PostgresDSN), err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logging.Error().Err(err).Msg("close storage")
		}
	}()
	logging.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")

	store := library.NewStore(backend)
	store.Load(ctx)

	provider, err := catalog.NewProvider(cfg.Catalog.Provider, catalog.ProviderOptions{
		BaseURL:   cfg.Catalog.BaseURL,
		APIKey:    cfg.Catalog.APIKey,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.Catalog.Timeout,
		RPS:       cfg.Catalog.RPS,
	})
	if err != nil {
		return fmt.Errorf("build catalog provider: %w", err)
	}
	catalogClient := catalog.NewClient(provider, catalog.Options{
		MinQueryLen:     cfg.Search.MinQueryLen,
		SearchLimit:     cfg.Search.Limit,
		BreakerFailures: cfg.Catalog.BreakerFailures,
		BreakerTimeout:  cfg.Catalog.BreakerTimeout,
	})

	engine := recommend.NewEngine(catalogClient, store, recommend.Config{
		BatchSize:     cfg.Recommend.BatchSize,
		TopN:          cfg.Recommend.TopN,
		FallbackGenre: cfg.Recommend.FallbackGenre,
		Debounce:      cfg.Recommend.Debounce,
		Timeout:       cfg.Recommend.Timeout,
	})
	go engine.Watch(ctx)

	limiter := httpx.NewRateLimitMiddleware(cfg.Server.RateRPS, cfg.Server.RateBurst)
	defer limiter.Stop()

	router := newRouter(services{
		store:     store,
		catalog:   catalogClient,
		typeahead: catalog.NewTypeahead(catalogClient, cfg.Search.Debounce),
		engine:    engine,
		linker:    storefront.NewLinker(cfg.Storefront.BaseURL, cfg.Storefront.AffiliateTag),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      withMiddleware(router, cfg.Server, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", cfg.Server.Addr).
			Str("catalog", catalogClient.Provider()).
			Msg("starting server")
		serverErr <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown")
	}
	return serveErr
}
