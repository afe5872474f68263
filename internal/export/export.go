package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/shelf/internal/datastore"
	"github.com/lepinkainen/shelf/internal/library"
)

// Format names an export target.
type Format string

const (
	FormatJSON      Format = "json"
	FormatCSV       Format = "csv"
	FormatParquet   Format = "parquet"
	FormatSQLite    Format = "sqlite"
	FormatDatasette Format = "datasette"
	FormatPostgres  Format = "postgres"
	FormatMarkdown  Format = "markdown"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCSV, FormatParquet, FormatSQLite, FormatDatasette, FormatPostgres, FormatMarkdown}

// Options configures Export. Only the fields relevant to the chosen
// format are used.
type Options struct {
	// Output is a file for json, csv, parquet and sqlite, and a directory for markdown.
	Output    string
	Overwrite bool

	Database       string
	DatasetteURL   string
	DatasetteToken string
	PostgresDSN    string

	ImageWidth int
}

// Export writes books in the given format.
func Export(ctx context.Context, books []library.Book, format Format, opts Options) error {
	if opts.Database == "" {
		opts.Database = "shelf"
	}

	switch format {
	case FormatJSON:
		return WriteJSON(books, requireOutput(opts, "books.json"), opts.Overwrite)
	case FormatCSV:
		return WriteCSV(books, requireOutput(opts, "books.csv"), opts.Overwrite)
	case FormatParquet:
		return WriteParquet(books, requireOutput(opts, "books.parquet"), opts.Overwrite)
	case FormatSQLite:
		return WriteStore(ctx, datastore.NewSQLiteStore(requireOutput(opts, "shelf.db")), opts.Database, books)
	case FormatDatasette:
		if opts.DatasetteURL == "" {
			return fmt.Errorf("datasette export needs a URL")
		}
		return WriteStore(ctx, datastore.NewDatasetteClient(opts.DatasetteURL, opts.DatasetteToken), opts.Database, books)
	case FormatPostgres:
		if opts.PostgresDSN == "" {
			return fmt.Errorf("postgres export needs a DSN")
		}
		return WriteStore(ctx, datastore.NewPostgresStore(opts.PostgresDSN), opts.Database, books)
	case FormatMarkdown:
		n, err := WriteMarkdown(books, requireOutput(opts, "markdown"), MarkdownOptions{
			Overwrite:  opts.Overwrite,
			ImageWidth: opts.ImageWidth,
		})
		slog.Info("Wrote markdown notes", "count", n)
		return err
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func requireOutput(opts Options, fallback string) string {
	if opts.Output != "" {
		return opts.Output
	}
	return fallback
}
