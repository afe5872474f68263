package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/shelf/internal/config"
	"github.com/lepinkainen/shelf/internal/export"
)

var runExport = export.Export

// ExportCmd represents the export command
type ExportCmd struct {
	LibraryFlags `embed:""`

	Format         string `short:"f" help:"Output format: json, csv, parquet, sqlite, datasette, postgres or markdown" enum:"json,csv,parquet,sqlite,datasette,postgres,markdown" default:"json"`
	Output         string `short:"o" help:"Output file, or directory for markdown"`
	Overwrite      bool   `help:"Overwrite existing output files"`
	Database       string `help:"Database name used by datasette and as the table namespace (defaults to export.database)"`
	DatasetteURL   string `help:"Datasette base URL (defaults to export.datasette_url)"`
	DatasetteToken string `help:"Datasette API token (defaults to export.datasette_token)"`
	PostgresDSN    string `help:"Postgres connection string (defaults to export.postgres_dsn)"`
	ImageWidth     int    `help:"Width of cover images in markdown notes (defaults to export.image_width)"`
}

func (e *ExportCmd) options() export.Options {
	settings := config.Load().Export
	return export.Options{
		Output:         e.Output,
		Overwrite:      e.Overwrite,
		Database:       firstNonEmpty(e.Database, settings.Database),
		DatasetteURL:   firstNonEmpty(e.DatasetteURL, settings.DatasetteURL),
		DatasetteToken: firstNonEmpty(e.DatasetteToken, settings.DatasetteToken),
		PostgresDSN:    firstNonEmpty(e.PostgresDSN, settings.PostgresDSN),
		ImageWidth:     firstPositive(e.ImageWidth, settings.ImageWidth),
	}
}

func (e *ExportCmd) Run(ctx context.Context) error {
	books, err := loadBooks(ctx, e.LibraryFlags)
	if err != nil {
		return err
	}

	format := export.Format(e.Format)
	if err := runExport(ctx, books, format, e.options()); err != nil {
		return fmt.Errorf("failed to export %s: %w", format, err)
	}
	slog.Info("Export complete", "format", format, "books", len(books))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
