package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/shelf/internal/config"
	"github.com/lepinkainen/shelf/internal/search"
)

// SearchCmd groups the full-text search subcommands.
type SearchCmd struct {
	Index SearchIndexCmd `cmd:"" help:"Scan paths and add the books to the search index"`
	Query SearchQueryCmd `cmd:"" help:"Query the search index"`
}

// SearchIndexCmd represents the search index subcommand
type SearchIndexCmd struct {
	LibraryFlags `embed:""`

	IndexDir string `help:"Index directory (defaults to search.index)"`
}

func (s *SearchIndexCmd) Run(ctx context.Context) error {
	books, err := loadBooks(ctx, s.LibraryFlags)
	if err != nil {
		return err
	}

	idx, err := search.Open(indexDir(s.IndexDir))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	if err := idx.IndexBooks(books); err != nil {
		return fmt.Errorf("failed to index books: %w", err)
	}
	total, err := idx.Count()
	if err != nil {
		return err
	}
	slog.Info("Indexed books", "added", len(books), "total", total)
	return nil
}

// SearchQueryCmd represents the search query subcommand
type SearchQueryCmd struct {
	Terms    []string `arg:"" optional:"" help:"Query terms, e.g. dune author:herbert"`
	Limit    int      `short:"n" help:"Maximum number of results" default:"20"`
	IndexDir string   `help:"Index directory (defaults to search.index)"`
}

func (s *SearchQueryCmd) Run() error {
	idx, err := search.Open(indexDir(s.IndexDir))
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	hits, err := idx.Search(strings.Join(s.Terms, " "), s.Limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(stdout, "No matches")
		return nil
	}
	for _, h := range hits {
		fmt.Fprintf(stdout, "%.2f  %s by %s\n      %s\n", h.Score, h.Title, h.Author, h.Path)
	}
	return nil
}

func indexDir(flag string) string {
	if flag != "" {
		return flag
	}
	return config.Load().SearchIndex
}
