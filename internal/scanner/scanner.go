// Package scanner walks directories for e-book files and turns each one
// into a library.Book on a bounded pool of workers.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lepinkainen/shelf/internal/library"
)

// DefaultExtensions are the file types a scan picks up.
var DefaultExtensions = []string{".pdf", ".epub", ".fb2", ".mobi"}

var (
	// ErrNoRoots is returned when Scan is called without any paths.
	ErrNoRoots = errors.New("no paths to scan")
	// ErrInvalidConcurrency is returned for a worker count below one.
	ErrInvalidConcurrency = errors.New("max concurrency must be at least 1")
)

// Extractor builds the Book for a single file.
type Extractor interface {
	Extract(ctx context.Context, path string) library.Book
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) library.Book

// Extract calls f(ctx, path).
func (f ExtractorFunc) Extract(ctx context.Context, path string) library.Book {
	return f(ctx, path)
}

// Progress is reported after every processed file.
type Progress struct {
	Processed int
	Path      string
}

// Scanner discovers book files and extracts them concurrently.
type Scanner struct {
	extractor  Extractor
	extensions map[string]bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions replaces the extension allow-list. Extensions may be
// given with or without the leading dot.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extensions = extensionSet(exts)
	}
}

// New creates a Scanner that hands every discovered file to extractor.
func New(extractor Extractor, opts ...Option) *Scanner {
	s := &Scanner{
		extractor:  extractor,
		extensions: extensionSet(DefaultExtensions),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsBookFile reports whether path has one of the default book extensions.
func IsBookFile(path string) bool {
	return extensionSet(DefaultExtensions)[strings.ToLower(filepath.Ext(path))]
}

func (s *Scanner) accepts(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// Run is an in-progress scan.
type Run struct {
	// Books receives one Book per processed file. It must be drained.
	Books <-chan library.Book
	// Progress always holds the most recent count. Intermediate values may
	// be skipped by a slow reader.
	Progress <-chan Progress

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops discovery and drops queued files. Extractions already
// running are allowed to finish.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until both channels are closed.
func (r *Run) Wait() {
	<-r.done
}

// Collect drains Books and returns them in arrival order.
func (r *Run) Collect() []library.Book {
	var books []library.Book
	for b := range r.Books {
		books = append(books, b)
	}
	r.Wait()
	return books
}

type result struct {
	book library.Book
	path string
}

// Scan starts scanning roots with maxConcurrency workers. Only argument
// problems and missing roots are reported as errors; everything else is
// logged and skipped.
func (s *Scanner) Scan(ctx context.Context, roots []string, maxConcurrency int) (*Run, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	if maxConcurrency < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrency)
	}
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("invalid scan root: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	jobs := make(chan string, maxConcurrency)
	results := make(chan result, maxConcurrency)
	books := make(chan library.Book)
	progress := make(chan Progress, 1)
	run := &Run{Books: books, Progress: progress, cancel: cancel, done: make(chan struct{})}

	// Discovery
	go func() {
		defer close(jobs)
		dispatch := func(path string) bool {
			select {
			case <-ctx.Done():
				return false
			case jobs <- path:
				return true
			}
		}
		for _, root := range roots {
			if !s.discover(ctx, root, dispatch) {
				slog.Debug("Discovery stopped", "reason", ctx.Err())
				return
			}
		}
	}()

	// Workers
	var wg sync.WaitGroup
	for range maxConcurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if book, ok := s.extract(context.WithoutCancel(ctx), path); ok {
					results <- result{book: book, path: path}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collector
	go func() {
		defer close(run.done)
		defer cancel()
		defer close(progress)
		defer close(books)

		processed := 0
		for r := range results {
			processed++
			books <- r.book
			publish(progress, Progress{Processed: processed, Path: r.path})
		}
		slog.Debug("Scan finished", "processed", processed)
	}()

	return run, nil
}

// publish replaces any unread value so the channel always holds the latest.
// The collector is the only sender, so the send after draining never blocks.
func publish(ch chan Progress, p Progress) {
	select {
	case ch <- p:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- p
}

func (s *Scanner) extract(ctx context.Context, path string) (book library.Book, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Extraction panicked", "path", path, "panic", r)
			ok = false
		}
	}()
	return s.extractor.Extract(ctx, path), true
}

// discover dispatches root itself when it is a book file, or walks it when
// it is a directory. It returns false once the scan has been cancelled.
func (s *Scanner) discover(ctx context.Context, root string, dispatch func(string) bool) bool {
	info, err := os.Stat(root)
	if err != nil {
		slog.Warn("Skipping scan root", "path", root, "error", err)
		return true
	}
	if !info.IsDir() {
		if s.accepts(root) {
			return dispatch(root)
		}
		return true
	}
	return s.walk(ctx, root, dispatch)
}

func (s *Scanner) walk(ctx context.Context, dir string, dispatch func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Cannot read directory", "path", dir, "error", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}
		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if !s.walk(ctx, path, dispatch) {
				return false
			}
		case entry.Type()&fs.ModeSymlink != 0:
			// Symlinked files are followed, symlinked directories are not.
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() || !s.accepts(path) {
				continue
			}
			if !dispatch(path) {
				return false
			}
		case entry.Type().IsRegular() && s.accepts(path):
			if !dispatch(path) {
				return false
			}
		}
	}
	return true
}
