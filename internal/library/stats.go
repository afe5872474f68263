package library

import (
	"sort"
	"strings"
)

// Stats summarizes a collection.
type Stats struct {
	Total   int
	Genres  int
	Authors int
	Formats []FormatCount
}

// FormatCount is the number of books stored in one file format.
type FormatCount struct {
	Format string
	Count  int
}

// ComputeStats counts books, distinct genres and authors, and books per
// format. Formats are ordered by descending count, then name.
func ComputeStats(books []Book) Stats {
	genres := make(map[string]struct{})
	authors := make(map[string]struct{})
	formats := make(map[string]int)

	for _, b := range books {
		genres[b.genre] = struct{}{}
		authors[b.author] = struct{}{}
		format := b.format
		if format == "" {
			format = UnknownFormat
		}
		formats[format]++
	}

	s := Stats{Total: len(books), Genres: len(genres), Authors: len(authors)}
	for f, n := range formats {
		s.Formats = append(s.Formats, FormatCount{Format: f, Count: n})
	}
	sort.Slice(s.Formats, func(i, j int) bool {
		if s.Formats[i].Count != s.Formats[j].Count {
			return s.Formats[i].Count > s.Formats[j].Count
		}
		return s.Formats[i].Format < s.Formats[j].Format
	})
	return s
}

// Duplicate is a set of files that look like the same title by the same author.
type Duplicate struct {
	Title  string
	Author string
	Paths  []string
}

// FindDuplicates groups books by case-insensitive title and author and
// returns every group holding more than one file, sorted by title.
func FindDuplicates(books []Book) []Duplicate {
	type group struct {
		first Book
		paths []string
	}
	groups := make(map[string]*group)
	var order []string

	for _, b := range books {
		k := strings.ToLower(b.title) + "|" + strings.ToLower(b.author)
		g, ok := groups[k]
		if !ok {
			g = &group{first: b}
			groups[k] = g
			order = append(order, k)
		}
		g.paths = append(g.paths, b.filePath)
	}

	var dups []Duplicate
	for _, k := range order {
		g := groups[k]
		if len(g.paths) < 2 {
			continue
		}
		paths := append([]string(nil), g.paths...)
		sort.Strings(paths)
		dups = append(dups, Duplicate{Title: g.first.title, Author: g.first.author, Paths: paths})
	}
	sort.SliceStable(dups, func(i, j int) bool {
		return strings.ToLower(dups[i].Title) < strings.ToLower(dups[j].Title)
	})
	return dups
}

// Filter returns the books whose title, author or genre contains query,
// ignoring case. An empty query matches everything.
func Filter(books []Book, query string) []Book {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return books
	}
	var out []Book
	for _, b := range books {
		if strings.Contains(strings.ToLower(b.title), query) ||
			strings.Contains(strings.ToLower(b.author), query) ||
			strings.Contains(strings.ToLower(b.genre), query) {
			out = append(out, b)
		}
	}
	return out
}
