package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/shelf/internal/datastore"
	"github.com/lepinkainen/shelf/internal/library"
)

// BooksTable is the table every database exporter writes to.
const BooksTable = "books"

// WriteStore upserts the collection into store, keyed by file path.
func WriteStore(ctx context.Context, store datastore.Store, database string, books []library.Book) error {
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.CreateTable(ctx, datastore.TableFor[Record](BooksTable, "path")); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(books))
	for _, r := range Records(books) {
		rows = append(rows, datastore.StructToRow(r, datastore.RowOptions{}))
	}
	if err := store.BatchInsert(ctx, database, BooksTable, rows); err != nil {
		return fmt.Errorf("failed to write books: %w", err)
	}

	slog.Info("Exported books", "database", database, "table", BooksTable, "rows", len(rows))
	return nil
}
