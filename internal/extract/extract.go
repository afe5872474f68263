// Package extract reads embedded bibliographic metadata from e-book files.
// Each format is handled by a best-effort Extractor; missing or unreadable
// fields are simply absent.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Field names returned in Metadata.Fields.
const (
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldLanguage    = "language"
	FieldSeries      = "series"
	FieldSeriesIndex = "series_index"
	FieldGenre       = "genre"
	FieldDate        = "date"
	FieldDescription = "description"
)

// Metadata is what an extractor found in a file.
type Metadata struct {
	Fields map[string]string
	Cover  []byte
}

// NewMetadata returns an empty Metadata ready for use.
func NewMetadata() *Metadata {
	return &Metadata{Fields: make(map[string]string)}
}

// Get returns the trimmed value of a field, or "".
func (m *Metadata) Get(name string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Fields[name])
}

// Set stores value unless it is blank or the field already has a value.
func (m *Metadata) Set(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" || m.Get(name) != "" {
		return
	}
	m.Fields[name] = value
}

// Extractor parses one file format.
type Extractor interface {
	Name() string
	Extensions() []string
	Parse(r io.ReaderAt, size int64) (*Metadata, error)
}

// Registry maps lowercase file extensions (without dot) to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// DefaultRegistry knows every supported e-book format.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(EPUB{})
	r.Register(FB2{})
	r.Register(PDF{})
	r.Register(MOBI{})
	return r
}

// Register adds e for all of its extensions, replacing earlier entries.
func (r *Registry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[normalizeExt(ext)] = e
	}
}

// Lookup returns the extractor for an extension such as "epub" or ".EPUB".
func (r *Registry) Lookup(ext string) (Extractor, bool) {
	e, ok := r.byExt[normalizeExt(ext)]
	return e, ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ParseFile opens path and runs the matching extractor. Files without a
// registered extractor yield empty metadata and no error.
func (r *Registry) ParseFile(path string) (*Metadata, error) {
	e, ok := r.Lookup(filepath.Ext(path))
	if !ok {
		return NewMetadata(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	md, err := e.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	if md == nil {
		md = NewMetadata()
	}
	return md, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
