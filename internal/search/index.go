// Package search keeps a full-text bleve index of a scanned collection.
package search

import (
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/lepinkainen/shelf/internal/library"
)

const batchSize = 500

// Document is what gets indexed for each book. The file path is the ID, so
// re-indexing a book replaces its document.
type Document struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Series      string `json:"series"`
	Genre       string `json:"genre"`
	Language    string `json:"language"`
	Year        string `json:"year"`
	Format      string `json:"format"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Hit is one search result.
type Hit struct {
	Path   string
	Title  string
	Author string
	Genre  string
	Score  float64
}

// Index wraps a bleve index.
type Index struct {
	index bleve.Index
}

func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()

	book := bleve.NewDocumentMapping()
	book.AddFieldMappingsAt("language", keyword)
	book.AddFieldMappingsAt("format", keyword)
	book.AddFieldMappingsAt("year", keyword)
	book.AddFieldMappingsAt("path", keyword)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = book
	return m
}

// Open opens the index at path, creating it when it does not exist yet.
// Bleve indexes are directories.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		idx, err := bleve.New(path, newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &Index{index: idx}, nil
}

// OpenMemory returns an index that lives only in memory.
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, err
	}
	return &Index{index: idx}, nil
}

// Close closes the index.
func (i *Index) Close() error {
	if i.index != nil {
		return i.index.Close()
	}
	return nil
}

// NewDocument converts a Book into its indexed form.
func NewDocument(b library.Book) Document {
	d := Document{
		Title:       b.Title(),
		Author:      b.Author(),
		Genre:       b.Genre(),
		Language:    b.Language(),
		Year:        b.Year(),
		Format:      b.Format(),
		Path:        b.FilePath(),
		Description: b.Description(),
	}
	if b.HasSeries() {
		d.Series = b.Series()
	}
	return d
}

// IndexBooks adds or replaces the documents for books in batches.
func (i *Index) IndexBooks(books []library.Book) error {
	batch := i.index.NewBatch()
	for _, b := range books {
		if err := batch.Index(b.FilePath(), NewDocument(b)); err != nil {
			return err
		}
		if batch.Size() >= batchSize {
			if err := i.index.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		return i.index.Batch(batch)
	}
	return nil
}

// Count returns the number of indexed books.
func (i *Index) Count() (int, error) {
	c, err := i.index.DocCount()
	return int(c), err
}

// Search runs a query string such as `dune author:herbert` and returns up to
// limit hits ordered by relevance.
func (i *Index) Search(queryString string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}

	var q bleveQuery.Query = bleve.NewMatchAllQuery()
	if queryString != "" {
		q = bleve.NewQueryStringQuery(queryString)
	}
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"title", "author", "genre", "path"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		getStr := func(f string) string {
			s, _ := h.Fields[f].(string)
			return s
		}
		hits = append(hits, Hit{
			Path:   h.ID,
			Title:  getStr("title"),
			Author: getStr("author"),
			Genre:  getStr("genre"),
			Score:  h.Score,
		})
	}
	return hits, nil
}
