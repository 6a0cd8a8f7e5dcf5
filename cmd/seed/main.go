package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"nextpage/internal/catalog"
	"nextpage/internal/config"
	"nextpage/internal/kv"
	"nextpage/internal/library"
	"nextpage/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		logging.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
}

// run owns every resource it opens and closes it before returning, so main
// only exits after cleanup.
func run(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "Path to a YAML config file")
		genre      = fs.String("genre", "fiction", "Catalog genre to import")
		limit      = fs.Int("limit", 10, "Number of catalog results to request (1-40)")
		target     = fs.String("target", targetReadingList, "Where to put the books: reading-list or read")
		rating     = fs.Float64("rating", 5, "Rating for books imported as read")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	config.LoadEnvFiles()
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

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
	client := catalog.NewClient(provider, catalog.Options{})

	res, err := seed(ctx, store, client, options{
		Genre:  *genre,
		Limit:  *limit,
		Target: *target,
		Rating: *rating,
	})
	if err != nil {
		return fmt.Errorf("seed library: %w", err)
	}
	logging.Info().
		Str("genre", *genre).
		Str("target", *target).
		Int("fetched", res.Fetched).
		Int("added", res.Added).
		Int("skipped", res.Skipped).
		Msg("seed complete")
	return nil
}
