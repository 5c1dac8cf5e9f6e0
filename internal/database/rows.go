package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scrape_headers (
		site       TEXT PRIMARY KEY,
		run_id     TEXT NOT NULL,
		columns    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS scraped_rows (
		id         UUID PRIMARY KEY,
		site       TEXT NOT NULL,
		run_id     TEXT NOT NULL,
		position   BIGINT NOT NULL,
		source_url TEXT NOT NULL,
		cells      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraped_rows_site_position ON scraped_rows (site, position)`,
}

// RowStore is a result sink backed by Postgres. Rows are scoped by site, so
// Clear only removes the output of earlier runs for the same site.
type RowStore struct {
	db       *DB
	site     string
	runID    string
	position int64
	logger   *slog.Logger
}

func NewRowStore(db *DB, site, runID string, logger *slog.Logger) *RowStore {
	return &RowStore{
		db:     db,
		site:   site,
		runID:  runID,
		logger: logger.With("component", "row_store", "site", site),
	}
}

// EnsureSchema creates the tables if they do not exist.
func (s *RowStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *RowStore) Clear(ctx context.Context) error {
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM scraped_rows WHERE site = $1`, s.site); err != nil {
			return fmt.Errorf("failed to delete rows: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM scrape_headers WHERE site = $1`, s.site); err != nil {
			return fmt.Errorf("failed to delete header: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.position = 0
	return nil
}

func (s *RowStore) AppendHeader(ctx context.Context, header []string) error {
	columns, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	query := `
		INSERT INTO scrape_headers (site, run_id, columns, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (site) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			columns = EXCLUDED.columns,
			updated_at = NOW()`

	if _, err := s.db.Exec(ctx, query, s.site, s.runID, columns); err != nil {
		return fmt.Errorf("failed to store header: %w", err)
	}
	return nil
}

// AppendRows inserts all rows in one transaction, preserving their order.
func (s *RowStore) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.insertBatch(rows)
	if err != nil {
		return err
	}

	err = s.db.Transaction(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert row %d: %w", i, err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return err
	}

	s.position += int64(len(rows))
	s.logger.Debug("rows stored", "rows", len(rows), "position", s.position)
	return nil
}

func (s *RowStore) insertBatch(rows [][]string) (*pgx.Batch, error) {
	query := `
		INSERT INTO scraped_rows (id, site, run_id, position, source_url, cells)
		VALUES ($1, $2, $3, $4, $5, $6)`

	batch := &pgx.Batch{}
	for i, row := range rows {
		sourceURL, cells := splitRecord(row)
		data, err := json.Marshal(cells)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal row %d: %w", i, err)
		}
		batch.Queue(query, uuid.New(), s.site, s.runID, s.position+int64(i), sourceURL, data)
	}
	return batch, nil
}

// splitRecord separates the leading source URL column from the field values.
func splitRecord(row []string) (string, []string) {
	if len(row) == 0 {
		return "", []string{}
	}
	return row[0], append([]string{}, row[1:]...)
}
