package export

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lepinkainen/shelf/internal/fileutil"
	"github.com/lepinkainen/shelf/internal/library"
	"github.com/lepinkainen/shelf/internal/obsidian"
)

const (
	coversDir          = "covers"
	authorsDir         = "authors"
	defaultImageWidth  = 400
	defaultJPEGQuality = 85
)

// MarkdownOptions controls WriteMarkdown.
type MarkdownOptions struct {
	Overwrite bool
	// ImageWidth caps exported cover and photo widths. Zero uses the default.
	ImageWidth int
}

// WriteMarkdown writes one Obsidian note per book into dir, with covers
// under dir/covers and author photos under dir/authors. Existing notes are
// skipped unless Overwrite is set, in which case their tags are merged.
// It returns the number of notes written.
func WriteMarkdown(books []library.Book, dir string, opts MarkdownOptions) (int, error) {
	if opts.ImageWidth <= 0 {
		opts.ImageWidth = defaultImageWidth
	}

	used := make(map[string]bool)
	written := 0
	var errs []error
	for _, b := range books {
		name := noteName(b, used)
		notePath := fileutil.GetMarkdownFilePath(name, dir)

		existing, skip := loadExisting(notePath, opts.Overwrite)
		if skip {
			slog.Debug("Note exists, skipping", "path", notePath)
			continue
		}

		coverRel := ""
		if b.HasCover() {
			rel := filepath.ToSlash(filepath.Join(coversDir, fileutil.SanitizeFilename(name)+".jpg"))
			if err := writeImage(b.Cover(), filepath.Join(dir, rel), opts.ImageWidth); err != nil {
				slog.Warn("Skipping cover", "title", b.Title(), "error", err)
			} else {
				coverRel = rel
			}
		}

		note := obsidian.BookNote(b, coverRel)
		if b.HasAuthorPhoto() {
			rel := filepath.ToSlash(filepath.Join(authorsDir, fileutil.SanitizeFilename(b.Author())+".jpg"))
			if err := writeImage(b.AuthorPhoto(), filepath.Join(dir, rel), opts.ImageWidth); err != nil {
				slog.Warn("Skipping author photo", "author", b.Author(), "error", err)
			} else {
				note.Frontmatter.Set("author_photo", rel)
			}
		}
		note.MergeExisting(existing)

		content, err := note.Build()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.FilePath(), err))
			continue
		}
		if _, err := fileutil.WriteFileWithOverwrite(notePath, content, 0o644, true); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.FilePath(), err))
			continue
		}
		written++
	}

	return written, errors.Join(errs...)
}

// noteName is the book title, disambiguated with the format and then a
// counter when several books share it.
func noteName(b library.Book, used map[string]bool) string {
	name := b.Title()
	if used[name] {
		name = fmt.Sprintf("%s (%s)", b.Title(), b.Format())
	}
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s (%s %d)", b.Title(), b.Format(), i)
	}
	used[name] = true
	return name
}

func loadExisting(path string, overwrite bool) (*obsidian.Note, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	if !overwrite {
		return nil, true
	}
	note, err := obsidian.ParseMarkdown(data)
	if err != nil {
		slog.Warn("Existing note has invalid frontmatter, replacing", "path", path, "error", err)
		return nil, false
	}
	return note, false
}

// writeImage re-encodes data as JPEG no wider than width.
func writeImage(data []byte, path string, width int) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(defaultJPEGQuality)); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	_, err = fileutil.WriteFileWithOverwrite(path, buf.Bytes(), 0o644, true)
	return err
}
