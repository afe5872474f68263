// Package library holds the Book record produced by a scan and the pure
// functions that organize a collection of them.
package library

import (
	"errors"
	"path/filepath"
	"strings"
)

// Sentinel values substituted for absent fields.
const (
	UnknownTitle    = "Unknown Title"
	UnknownAuthor   = "Unknown Author"
	NoSeries        = "No Series"
	DefaultGenre    = "General"
	UnknownLanguage = "Unknown"
	UnknownYear     = "Unknown Year"
	UnknownFormat   = "Unknown"
)

// ErrMissingPath is returned by New when the source file path is empty.
var ErrMissingPath = errors.New("book file path is required")

// Fields carries the raw values a Book is built from. Blank strings are
// replaced by the matching sentinel.
type Fields struct {
	Title       string
	Author      string
	Series      string
	SeriesIndex *int
	Genre       string
	Language    string
	Year        string
	FilePath    string
	Format      string
	Description string
	Cover       []byte
	AuthorPhoto []byte
}

// Book is an immutable bibliographic record for a single file.
type Book struct {
	title       string
	author      string
	series      string
	seriesIndex *int
	genre       string
	language    string
	year        string
	filePath    string
	format      string
	description string
	cover       []byte
	authorPhoto []byte
}

// New builds a Book, defaulting every blank field to its sentinel.
func New(f Fields) (Book, error) {
	if strings.TrimSpace(f.FilePath) == "" {
		return Book{}, ErrMissingPath
	}

	format := strings.TrimSpace(f.Format)
	if format == "" {
		format = FormatOf(f.FilePath)
	}

	b := Book{
		title:       orDefault(f.Title, UnknownTitle),
		author:      orDefault(f.Author, UnknownAuthor),
		series:      orDefault(f.Series, NoSeries),
		genre:       orDefault(f.Genre, DefaultGenre),
		language:    orDefault(f.Language, UnknownLanguage),
		year:        orDefault(f.Year, UnknownYear),
		filePath:    f.FilePath,
		format:      orDefault(strings.ToLower(format), UnknownFormat),
		description: strings.TrimSpace(f.Description),
		cover:       cloneBytes(f.Cover),
		authorPhoto: cloneBytes(f.AuthorPhoto),
	}
	if f.SeriesIndex != nil {
		idx := *f.SeriesIndex
		b.seriesIndex = &idx
	}
	return b, nil
}

// FormatOf returns the lowercase extension of path without the dot.
func FormatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func (b Book) Title() string       { return b.title }
func (b Book) Author() string      { return b.author }
func (b Book) Series() string      { return b.series }
func (b Book) Genre() string       { return b.genre }
func (b Book) Language() string    { return b.language }
func (b Book) Year() string        { return b.year }
func (b Book) FilePath() string    { return b.filePath }
func (b Book) Format() string      { return b.format }
func (b Book) Description() string { return b.description }

// SeriesIndex returns the position within the series, if known.
func (b Book) SeriesIndex() (int, bool) {
	if b.seriesIndex == nil {
		return 0, false
	}
	return *b.seriesIndex, true
}

// Cover returns a copy of the cover image bytes, or nil.
func (b Book) Cover() []byte { return cloneBytes(b.cover) }

// AuthorPhoto returns a copy of the author photo bytes, or nil.
func (b Book) AuthorPhoto() []byte { return cloneBytes(b.authorPhoto) }

// HasCover reports whether the book carries cover bytes.
func (b Book) HasCover() bool { return len(b.cover) > 0 }

// HasAuthorPhoto reports whether the book carries an author photo.
func (b Book) HasAuthorPhoto() bool { return len(b.authorPhoto) > 0 }

// HasSeries reports whether the book belongs to a named series.
func (b Book) HasSeries() bool { return b.series != NoSeries }

// Fields returns the values the book was built from, after defaulting.
func (b Book) Fields() Fields {
	f := Fields{
		Title:       b.title,
		Author:      b.author,
		Series:      b.series,
		Genre:       b.genre,
		Language:    b.language,
		Year:        b.year,
		FilePath:    b.filePath,
		Format:      b.format,
		Description: b.description,
		Cover:       b.Cover(),
		AuthorPhoto: b.AuthorPhoto(),
	}
	if idx, ok := b.SeriesIndex(); ok {
		f.SeriesIndex = &idx
	}
	return f
}

// Key identifies a book for deduplication.
type Key struct {
	Title    string
	Author   string
	FilePath string
}

// Key returns the deduplication identity of the book.
func (b Book) Key() Key {
	return Key{Title: b.title, Author: b.author, FilePath: b.filePath}
}

// Equal reports whether two books share the same identity.
func (b Book) Equal(other Book) bool {
	return b.Key() == other.Key()
}

// Dedupe returns books with repeated identities removed, keeping the first
// occurrence and the original order.
func Dedupe(books []Book) []Book {
	seen := make(map[Key]struct{}, len(books))
	out := make([]Book, 0, len(books))
	for _, b := range books {
		k := b.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return out
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
