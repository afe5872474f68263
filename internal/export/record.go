// Package export writes a scanned collection to files and databases.
package export

import "github.com/lepinkainen/shelf/internal/library"

// Record is the flat, serializable form of a Book shared by all exporters.
// Binary cover data is reduced to presence flags.
type Record struct {
	Path           string `json:"path" parquet:"path" db:"path"`
	Title          string `json:"title" parquet:"title" db:"title"`
	Author         string `json:"author" parquet:"author" db:"author"`
	Series         string `json:"series" parquet:"series" db:"series"`
	SeriesIndex    *int   `json:"series_index,omitempty" parquet:"series_index,optional" db:"series_index"`
	Genre          string `json:"genre" parquet:"genre" db:"genre"`
	Language       string `json:"language" parquet:"language" db:"language"`
	Year           string `json:"year" parquet:"year" db:"year"`
	Format         string `json:"format" parquet:"format" db:"format"`
	Description    string `json:"description,omitempty" parquet:"description" db:"description"`
	HasCover       bool   `json:"has_cover" parquet:"has_cover" db:"has_cover"`
	HasAuthorPhoto bool   `json:"has_author_photo" parquet:"has_author_photo" db:"has_author_photo"`
}

// NewRecord flattens b.
func NewRecord(b library.Book) Record {
	r := Record{
		Path:           b.FilePath(),
		Title:          b.Title(),
		Author:         b.Author(),
		Series:         b.Series(),
		Genre:          b.Genre(),
		Language:       b.Language(),
		Year:           b.Year(),
		Format:         b.Format(),
		Description:    b.Description(),
		HasCover:       b.HasCover(),
		HasAuthorPhoto: b.HasAuthorPhoto(),
	}
	if idx, ok := b.SeriesIndex(); ok {
		r.SeriesIndex = &idx
	}
	return r
}

// Records flattens books, keeping their order.
func Records(books []library.Book) []Record {
	out := make([]Record, 0, len(books))
	for _, b := range books {
		out = append(out, NewRecord(b))
	}
	return out
}
