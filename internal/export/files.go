package export

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/lepinkainen/shelf/internal/csvutil"
	"github.com/lepinkainen/shelf/internal/fileutil"
	"github.com/lepinkainen/shelf/internal/library"
	"github.com/parquet-go/parquet-go"
)

// WriteJSON writes the collection as an indented JSON array.
func WriteJSON(books []library.Book, path string, overwrite bool) error {
	written, err := fileutil.WriteJSONFile(Records(books), path, overwrite)
	if err != nil {
		return err
	}
	if !written {
		return fmt.Errorf("%s already exists", path)
	}
	return nil
}

// WriteParquet writes the collection as a Parquet file with one row per book.
func WriteParquet(books []library.Book, path string, overwrite bool) error {
	if fileutil.FileExists(path) && !overwrite {
		return fmt.Errorf("%s already exists", path)
	}
	if err := parquet.WriteFile(path, Records(books)); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	slog.Info("Wrote parquet file", "filename", path, "rows", len(books))
	return nil
}

var csvHeader = []string{
	"path", "title", "author", "series", "series_index", "genre",
	"language", "year", "format", "description", "has_cover", "has_author_photo",
}

// WriteCSV writes the collection as a CSV file with a header row.
func WriteCSV(books []library.Book, path string, overwrite bool) error {
	if fileutil.FileExists(path) && !overwrite {
		return fmt.Errorf("%s already exists", path)
	}
	err := csvutil.WriteCSV(path, csvHeader, Records(books), func(r Record) []string {
		seriesIndex := ""
		if r.SeriesIndex != nil {
			seriesIndex = strconv.Itoa(*r.SeriesIndex)
		}
		return []string{
			r.Path, r.Title, r.Author, r.Series, seriesIndex, r.Genre,
			r.Language, r.Year, r.Format, r.Description,
			strconv.FormatBool(r.HasCover), strconv.FormatBool(r.HasAuthorPhoto),
		}
	})
	if err != nil {
		return fmt.Errorf("failed to write csv file: %w", err)
	}
	slog.Info("Wrote csv file", "filename", path, "rows", len(books))
	return nil
}
