package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/shelf/internal/cache"
	"github.com/lepinkainen/shelf/internal/catalog"
	"github.com/lepinkainen/shelf/internal/config"
	"github.com/lepinkainen/shelf/internal/enrichment"
	"github.com/lepinkainen/shelf/internal/library"
	"github.com/lepinkainen/shelf/internal/ratelimit"
	"github.com/lepinkainen/shelf/internal/scanner"
	"github.com/lepinkainen/shelf/internal/tui"
)

// LibraryFlags are shared by every command that scans paths.
type LibraryFlags struct {
	Paths   []string `arg:"" name:"path" help:"Book files or directories to scan"`
	Workers int      `short:"w" help:"Parallel extraction workers (defaults to scan.workers)"`
	Offline bool     `help:"Use embedded metadata only, skip the remote catalog"`
	TUI     bool     `name:"tui" help:"Show interactive scan progress"`
	Filter  string   `short:"F" help:"Keep books whose title, author or genre contains this text"`
}

var (
	loadBooks  = loadLibrary
	watchScan  = tui.WatchScan
	openCache  = cache.NewFromConfig
	newCatalog = newCatalogClient
)

// loadLibrary scans the paths, deduplicates the result and applies the filter.
func loadLibrary(ctx context.Context, flags LibraryFlags) ([]library.Book, error) {
	settings := config.Load()

	workers := flags.Workers
	if workers == 0 {
		workers = settings.Scan.Workers
	}

	var remote enrichment.Remote
	if !flags.Offline && !settings.Catalog.Offline {
		client, err := newCatalog(settings.Catalog)
		if err != nil {
			return nil, err
		}
		remote = client
	}

	pipeline := enrichment.NewPipeline(nil, remote,
		enrichment.WithMinImageBytes(settings.Catalog.MinImageBytes),
		enrichment.WithAuthorPhotos(settings.Catalog.AuthorPhotos),
	)

	var opts []scanner.Option
	if len(settings.Scan.Extensions) > 0 {
		opts = append(opts, scanner.WithExtensions(settings.Scan.Extensions...))
	}
	run, err := scanner.New(pipeline, opts...).Scan(ctx, flags.Paths, workers)
	if err != nil {
		return nil, err
	}

	var books []library.Book
	if flags.TUI {
		books, err = watchScan(run)
	} else {
		books = run.Collect()
	}

	unique := library.Dedupe(books)
	slog.Debug("Scan collected books", "found", len(books), "unique", len(unique))
	return library.Filter(unique, flags.Filter), err
}

func newCatalogClient(s config.CatalogSettings) (*catalog.Client, error) {
	store, err := openCache()
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if s.APIKey == "" {
		slog.Debug("No catalog API key configured, using anonymous quota")
	}
	return catalog.NewClient(s.APIKey,
		catalog.WithCache(store),
		catalog.WithRetry(s.MaxAttempts, s.BaseDelay),
		catalog.WithMinImageBytes(s.MinImageBytes),
		catalog.WithRateLimiter(ratelimit.New("catalog", s.RatePerSecond)),
	), nil
}
