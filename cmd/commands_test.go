package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/shelf/internal/cache"
	"github.com/lepinkainen/shelf/internal/catalog"
	"github.com/lepinkainen/shelf/internal/config"
	shelferrors "github.com/lepinkainen/shelf/internal/errors"
	"github.com/lepinkainen/shelf/internal/export"
	"github.com/lepinkainen/shelf/internal/library"
	"github.com/lepinkainen/shelf/internal/scanner"
	"github.com/lepinkainen/shelf/internal/testutil"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = original })
	return &buf
}

func stubBooks(t *testing.T, books []library.Book, err error) *LibraryFlags {
	t.Helper()
	var seen LibraryFlags
	original := loadBooks
	loadBooks = func(_ context.Context, flags LibraryFlags) ([]library.Book, error) {
		seen = flags
		return books, err
	}
	t.Cleanup(func() { loadBooks = original })
	return &seen
}

func newBook(t *testing.T, f library.Fields) library.Book {
	t.Helper()
	b, err := library.New(f)
	require.NoError(t, err)
	return b
}

func sampleLibrary(t *testing.T) []library.Book {
	return []library.Book{
		newBook(t, library.Fields{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Language: "en", FilePath: "/books/dune.epub"}),
		newBook(t, library.Fields{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Language: "en", FilePath: "/books/dune.pdf"}),
		newBook(t, library.Fields{Title: "Emma", Author: "Jane Austen", Genre: "Romance", Language: "en", FilePath: "/books/emma.fb2"}),
	}
}

func TestScanPrintsGroupedTree(t *testing.T) {
	out := captureOutput(t)
	seen := stubBooks(t, sampleLibrary(t), nil)

	cmd := &ScanCmd{LibraryFlags: LibraryFlags{Paths: []string{"/books"}, Offline: true}, GroupBy: "genre"}
	require.NoError(t, cmd.Run(context.Background()))

	assert.Equal(t, []string{"/books"}, seen.Paths)
	assert.True(t, seen.Offline)
	assert.Equal(t, strings.Join([]string{
		"Romance (1)",
		"  - Emma by Jane Austen [fb2]",
		"Science Fiction (2)",
		"  - Dune by Frank Herbert [epub]",
		"  - Dune by Frank Herbert [pdf]",
		"",
	}, "\n"), out.String())
}

func TestScanRejectsUnknownGroupingKey(t *testing.T) {
	stubBooks(t, nil, nil)

	err := (&ScanCmd{GroupBy: "genre,colour"}).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestScanPrintsPartialResultsWhenStopped(t *testing.T) {
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t)[:1], shelferrors.NewStopProcessingError("scan stopped by user"))

	err := (&ScanCmd{GroupBy: "author"}).Run(context.Background())

	assert.True(t, shelferrors.IsStopProcessingError(err))
	assert.Contains(t, out.String(), "Frank Herbert (1)")
}

func TestStatsCommand(t *testing.T) {
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t), nil)

	require.NoError(t, (&StatsCmd{}).Run(context.Background()))

	assert.Contains(t, out.String(), "Books:   3")
	assert.Contains(t, out.String(), "Genres:  2")
	assert.Contains(t, out.String(), "Authors: 2")
	assert.Contains(t, out.String(), "epub")
}

func TestDuplicatesCommand(t *testing.T) {
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t), nil)

	require.NoError(t, (&DuplicatesCmd{}).Run(context.Background()))

	assert.Equal(t, "Dune by Frank Herbert\n  /books/dune.epub\n  /books/dune.pdf\n", out.String())
}

func TestDuplicatesCommandWithoutDuplicates(t *testing.T) {
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t)[2:], nil)

	require.NoError(t, (&DuplicatesCmd{}).Run(context.Background()))

	assert.Equal(t, "No duplicates found\n", out.String())
}

func TestOrganizeCommandCopiesBooks(t *testing.T) {
	env := testutil.NewTestEnv(t)
	src := env.WriteFileString("in/dune.epub", "book")
	stubBooks(t, []library.Book{
		newBook(t, library.Fields{Title: "Dune", Genre: "Science Fiction", Language: "en", FilePath: src}),
	}, nil)

	cmd := &OrganizeCmd{Dest: env.Path("out")}
	require.NoError(t, cmd.Run(context.Background()))

	files := env.Files("out")
	require.Len(t, files, 1)
	assert.Equal(t, "dune.epub", filepath.Base(files[0]))
	assert.Contains(t, files[0], "collection")
}

func TestOrganizeCommandStopsOnScanError(t *testing.T) {
	stubBooks(t, nil, scanner.ErrNoRoots)

	err := (&OrganizeCmd{Dest: t.TempDir()}).Run(context.Background())

	assert.ErrorIs(t, err, scanner.ErrNoRoots)
}

func TestExportCommandMergesConfigDefaults(t *testing.T) {
	testutil.SetViperValues(t, map[string]any{
		"export.database":      "books",
		"export.datasette_url": "http://datasette.local",
		"export.image_width":   300,
	})
	stubBooks(t, sampleLibrary(t), nil)

	var gotFormat export.Format
	var gotOpts export.Options
	original := runExport
	runExport = func(_ context.Context, books []library.Book, format export.Format, opts export.Options) error {
		gotFormat = format
		gotOpts = opts
		assert.Len(t, books, 3)
		return nil
	}
	t.Cleanup(func() { runExport = original })

	cmd := &ExportCmd{Format: "datasette", DatasetteToken: "flag-token"}
	require.NoError(t, cmd.Run(context.Background()))

	assert.Equal(t, export.FormatDatasette, gotFormat)
	assert.Equal(t, "books", gotOpts.Database)
	assert.Equal(t, "http://datasette.local", gotOpts.DatasetteURL)
	assert.Equal(t, "flag-token", gotOpts.DatasetteToken)
	assert.Equal(t, 300, gotOpts.ImageWidth)
}

func TestExportCommandWritesJSON(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	stubBooks(t, sampleLibrary(t), nil)

	cmd := &ExportCmd{Format: "json", Output: env.Path("books.json")}
	require.NoError(t, cmd.Run(context.Background()))

	assert.Contains(t, string(env.ReadFile("books.json")), `"title": "Emma"`)
}

func TestExportCommandWrapsFailures(t *testing.T) {
	testutil.ResetConfig(t)
	stubBooks(t, sampleLibrary(t), nil)

	err := (&ExportCmd{Format: "postgres"}).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to export postgres")
}

func TestSearchIndexThenQuery(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t), nil)
	dir := env.Path("index.bleve")

	require.NoError(t, (&SearchIndexCmd{IndexDir: dir}).Run(context.Background()))
	require.NoError(t, (&SearchQueryCmd{Terms: []string{"austen"}, Limit: 5, IndexDir: dir}).Run())

	assert.Contains(t, out.String(), "Emma by Jane Austen")
	assert.NotContains(t, out.String(), "Dune")
}

func TestSearchQueryWithoutMatches(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	out := captureOutput(t)
	stubBooks(t, sampleLibrary(t), nil)
	dir := env.Path("index.bleve")

	require.NoError(t, (&SearchIndexCmd{IndexDir: dir}).Run(context.Background()))
	require.NoError(t, (&SearchQueryCmd{Terms: []string{"tolkien"}, Limit: 5, IndexDir: dir}).Run())

	assert.Equal(t, "No matches\n", out.String())
}

func TestLoadLibraryOfflineReadsEmbeddedMetadata(t *testing.T) {
	testutil.SetViperValues(t, map[string]any{"scan.workers": 2})
	env := testutil.NewTestEnv(t)
	env.WriteFile("dune.epub", testutil.EPUB(t, testutil.BookFixture{
		Title:    "Dune",
		Authors:  []string{"Frank Herbert"},
		Language: "en",
		Genre:    "Science Fiction",
	}))
	env.WriteFile("emma.fb2", testutil.FB2(t, testutil.BookFixture{
		Title:   "Emma",
		Authors: []string{"Jane Austen"},
		Genre:   "Romance",
	}))
	env.WriteFileString("notes.txt", "not a book")

	books, err := loadLibrary(context.Background(), LibraryFlags{
		Paths:   []string{env.RootDir(), env.Path("dune.epub")},
		Offline: true,
	})
	require.NoError(t, err)

	require.Len(t, books, 2)
	titles := []string{books[0].Title(), books[1].Title()}
	assert.ElementsMatch(t, []string{"Dune", "Emma"}, titles)
}

func TestLoadLibraryAppliesFilter(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	env.WriteFile("dune.epub", testutil.EPUB(t, testutil.BookFixture{Title: "Dune", Authors: []string{"Frank Herbert"}}))
	env.WriteFile("emma.epub", testutil.EPUB(t, testutil.BookFixture{Title: "Emma", Authors: []string{"Jane Austen"}}))

	books, err := loadLibrary(context.Background(), LibraryFlags{
		Paths:   []string{env.RootDir()},
		Workers: 1,
		Offline: true,
		Filter:  "austen",
	})
	require.NoError(t, err)

	require.Len(t, books, 1)
	assert.Equal(t, "Emma", books[0].Title())
}

func TestLoadLibraryRejectsMissingRoot(t *testing.T) {
	testutil.ResetConfig(t)

	_, err := loadLibrary(context.Background(), LibraryFlags{
		Paths:   []string{filepath.Join(t.TempDir(), "missing")},
		Workers: 1,
		Offline: true,
	})

	assert.Error(t, err)
}

func TestLoadLibraryFillsGapsFromCatalog(t *testing.T) {
	testutil.SetViperValues(t, map[string]any{"catalog.author_photos": false})
	env := testutil.NewTestEnv(t)
	env.WriteFile("dune.epub", testutil.EPUB(t, testutil.BookFixture{
		Title:   "Dune",
		Authors: []string{"Frank Herbert"},
	}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/volumes" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalItems":1,"items":[{"volumeInfo":{
			"title":"Dune","authors":["Frank Herbert"],"publishedDate":"1965-08-01",
			"categories":["Science Fiction"],"language":"en","description":"Desert planet."}}]}`))
	}))
	t.Cleanup(server.Close)

	originalCatalog := newCatalog
	newCatalog = func(s config.CatalogSettings) (*catalog.Client, error) {
		store, err := cache.New("")
		if err != nil {
			return nil, err
		}
		return catalog.NewClient(s.APIKey,
			catalog.WithHTTPClient(server.Client()),
			catalog.WithBaseURLs(server.URL, server.URL, server.URL),
			catalog.WithRateLimiter(nil),
			catalog.WithCache(store),
		), nil
	}
	t.Cleanup(func() { newCatalog = originalCatalog })

	books, err := loadLibrary(context.Background(), LibraryFlags{Paths: []string{env.RootDir()}, Workers: 1})
	require.NoError(t, err)

	require.Len(t, books, 1)
	assert.Equal(t, "Science Fiction", books[0].Genre())
	assert.Equal(t, "1965", books[0].Year())
	assert.Equal(t, "Desert planet.", books[0].Description())
}

func TestLoadLibraryReportsCatalogSetupFailure(t *testing.T) {
	testutil.ResetConfig(t)
	originalCache := openCache
	openCache = func() (*cache.Cache, error) { return nil, errors.New("disk full") }
	t.Cleanup(func() { openCache = originalCache })

	_, err := loadLibrary(context.Background(), LibraryFlags{Paths: []string{t.TempDir()}, Workers: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestLoadLibraryUsesProgressView(t *testing.T) {
	testutil.ResetConfig(t)
	env := testutil.NewTestEnv(t)
	env.WriteFile("dune.epub", testutil.EPUB(t, testutil.BookFixture{Title: "Dune"}))

	called := false
	original := watchScan
	watchScan = func(run *scanner.Run) ([]library.Book, error) {
		called = true
		return run.Collect(), nil
	}
	t.Cleanup(func() { watchScan = original })

	books, err := loadLibrary(context.Background(), LibraryFlags{
		Paths:   []string{env.RootDir()},
		Workers: 1,
		Offline: true,
		TUI:     true,
	})
	require.NoError(t, err)

	assert.True(t, called)
	assert.Len(t, books, 1)
}
