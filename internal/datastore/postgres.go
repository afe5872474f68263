package datastore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

// PostgresStore implements the Store interface on a pgx connection pool.
type PostgresStore struct {
	dsn  string
	pool *pgxpool.Pool
	// primary keys of tables created through this store, used for upserts
	keys map[string]string
}

// NewPostgresStore creates a store for the given connection string.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn, keys: make(map[string]string)}
}

// Connect opens the pool and verifies the server is reachable.
func (s *PostgresStore) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("cannot ping database (%s): %w", redactDSN(s.dsn), err)
	}
	s.pool = pool
	return nil
}

func postgresType(t ColumnType) string {
	switch t {
	case Integer:
		return "BIGINT"
	case Boolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// CreateTable creates the table if it doesn't exist.
func (s *PostgresStore) CreateTable(ctx context.Context, table Table) error {
	ddl, err := createTableSQL(table, postgresType)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if pk := table.PrimaryKey(); pk != "" {
		s.keys[table.Name] = pk
	}
	return nil
}

// BatchInsert upserts all records in one transaction using a pgx batch.
func (s *PostgresStore) BatchInsert(ctx context.Context, _ string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	columns := columnsOf(records)
	query := postgresUpsertSQL(table, columns, s.keys[table])

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, record := range records {
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = record[col]
		}
		batch.Queue(query, values...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	return tx.Commit(ctx)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func postgresUpsertSQL(table string, columns []string, primaryKey string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), quoteAll(columns), strings.Join(placeholders, ", "))

	if primaryKey == "" {
		return query
	}
	var updates []string
	for _, col := range columns {
		if col != primaryKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdent(col), quoteIdent(col)))
		}
	}
	if len(updates) == 0 {
		return query + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteIdent(primaryKey))
	}
	return query + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", quoteIdent(primaryKey), strings.Join(updates, ", "))
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
