package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/shelf/internal/library"
	"github.com/lepinkainen/shelf/internal/organize"
)

// ScanCmd represents the scan command
type ScanCmd struct {
	LibraryFlags `embed:""`

	GroupBy string `short:"g" help:"Comma separated grouping keys: language, genre, series, author, year, format" default:"language,genre,series"`
}

func (s *ScanCmd) Run(ctx context.Context) error {
	keys, unknown := library.ParseKeyFuncs(s.GroupBy)
	if len(unknown) > 0 {
		return fmt.Errorf("unknown grouping key %s", strings.Join(unknown, ", "))
	}

	books, err := loadBooks(ctx, s.LibraryFlags)
	printTree(library.Group(books, keys...))
	return err
}

func printTree(nodes []*library.Node) {
	library.Walk(nodes, func(depth int, n *library.Node) {
		indent := strings.Repeat("  ", depth)
		if n.Key != "" {
			fmt.Fprintf(stdout, "%s%s (%d)\n", indent, n.Key, n.Count())
			indent += "  "
		}
		for _, b := range n.Books {
			fmt.Fprintf(stdout, "%s- %s by %s [%s]\n", indent, b.Title(), b.Author(), b.Format())
		}
	})
}

// OrganizeCmd represents the organize command
type OrganizeCmd struct {
	LibraryFlags `embed:""`

	Dest string `short:"d" help:"Base directory for the collection" required:""`
}

func (o *OrganizeCmd) Run(ctx context.Context) error {
	books, err := loadBooks(ctx, o.LibraryFlags)
	if err != nil {
		return err
	}

	report, err := organize.Organize(ctx, books, o.Dest)
	slog.Info("Organized collection",
		"root", report.Root,
		"copied", len(report.Copied),
		"failed", len(report.Failed),
	)
	return err
}

// StatsCmd represents the stats command
type StatsCmd struct {
	LibraryFlags `embed:""`
}

func (s *StatsCmd) Run(ctx context.Context) error {
	books, err := loadBooks(ctx, s.LibraryFlags)
	if err != nil {
		return err
	}

	stats := library.ComputeStats(books)
	fmt.Fprintf(stdout, "Books:   %d\n", stats.Total)
	fmt.Fprintf(stdout, "Genres:  %d\n", stats.Genres)
	fmt.Fprintf(stdout, "Authors: %d\n", stats.Authors)
	for _, f := range stats.Formats {
		fmt.Fprintf(stdout, "  %-6s %d\n", f.Format, f.Count)
	}
	return nil
}

// DuplicatesCmd represents the duplicates command
type DuplicatesCmd struct {
	LibraryFlags `embed:""`
}

func (d *DuplicatesCmd) Run(ctx context.Context) error {
	books, err := loadBooks(ctx, d.LibraryFlags)
	if err != nil {
		return err
	}

	dups := library.FindDuplicates(books)
	if len(dups) == 0 {
		fmt.Fprintln(stdout, "No duplicates found")
		return nil
	}
	for _, dup := range dups {
		fmt.Fprintf(stdout, "%s by %s\n", dup.Title, dup.Author)
		for _, p := range dup.Paths {
			fmt.Fprintf(stdout, "  %s\n", p)
		}
	}
	return nil
}
