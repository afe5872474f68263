// Package organize copies books into a collection tree laid out by
// language, genre and series.
package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/shelf/internal/fileutil"
	"github.com/lepinkainen/shelf/internal/library"
)

// CollectionDir is the name of the directory books are copied into.
const CollectionDir = "collection"

// Copy records one successful copy.
type Copy struct {
	Source      string
	Destination string
}

// Report summarizes an Organize run.
type Report struct {
	Root   string
	Copied []Copy
	Failed map[string]error
}

// Root returns the collection root for baseDir: baseDir itself when it is
// already named "collection", otherwise baseDir/collection.
func Root(baseDir string) string {
	if strings.EqualFold(filepath.Base(filepath.Clean(baseDir)), CollectionDir) {
		return filepath.Clean(baseDir)
	}
	return filepath.Join(baseDir, CollectionDir)
}

// Destination returns where b is copied to under root.
func Destination(root string, b library.Book) string {
	parts := []string{root, fileutil.SafeSegment(b.Language()), fileutil.SafeSegment(b.Genre())}
	if b.HasSeries() {
		parts = append(parts, fileutil.SafeSegment(b.Series()))
	}
	parts = append(parts, filepath.Base(b.FilePath()))
	return filepath.Join(parts...)
}

// Organize copies every book into the collection tree under baseDir.
// Existing files are replaced and sources are left in place. A failed copy
// does not stop the run; all failures are joined into the returned error.
func Organize(ctx context.Context, books []library.Book, baseDir string) (Report, error) {
	report := Report{Root: Root(baseDir), Failed: make(map[string]error)}

	var errs []error
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		src := b.FilePath()
		dst := Destination(report.Root, b)
		if sameFile(src, dst) {
			report.Copied = append(report.Copied, Copy{Source: src, Destination: dst})
			continue
		}
		if err := fileutil.CopyFile(src, dst); err != nil {
			slog.Warn("Failed to copy book", "path", src, "destination", dst, "error", err)
			report.Failed[src] = err
			errs = append(errs, fmt.Errorf("copy %s: %w", src, err))
			continue
		}
		slog.Debug("Copied book", "path", src, "destination", dst)
		report.Copied = append(report.Copied, Copy{Source: src, Destination: dst})
	}

	return report, errors.Join(errs...)
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
