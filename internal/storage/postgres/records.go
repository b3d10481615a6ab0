package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// RecordStorage stores inspection records in PostgreSQL. Line items live in
// a JSONB column next to the header fields.
type RecordStorage struct {
	db     *pgxpool.Pool
	now    func() time.Time
	logger *logger.Logger
}

var _ storage.Store = (*RecordStorage)(nil)

// Connect opens a pool for dsn, pings it and prepares the schema
func Connect(ctx context.Context, dsn string, log *logger.Logger) (*RecordStorage, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := NewRecordStorage(pool, log)
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.Info("Connected to PostgreSQL", logger.String("database", config.ConnConfig.Database))
	return s, nil
}

// NewRecordStorage wraps an existing pool. The schema is not touched.
func NewRecordStorage(pool *pgxpool.Pool, logger *logger.Logger) *RecordStorage {
	return &RecordStorage{
		db:     pool,
		now:    time.Now,
		logger: logger.Named("pg-records"),
	}
}

func (s *RecordStorage) initSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS inspection_records (
			id UUID PRIMARY KEY,
			company_name TEXT NOT NULL,
			drawing_number TEXT NOT NULL,
			part_number TEXT NOT NULL,
			part_name TEXT NOT NULL,
			inspector TEXT NOT NULL,
			comment TEXT NOT NULL,
			inspection_items JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create inspection_records table: %w", err)
	}

	_, err = s.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_inspection_records_created_at ON inspection_records(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create record index: %w", err)
	}
	return nil
}

// Save stamps and inserts a record
func (s *RecordStorage) Save(ctx context.Context, record inspection.Record) (inspection.Stored, error) {
	stored := storage.Stamp(record, s.now())
	if err := s.insert(ctx, stored); err != nil {
		return inspection.Stored{}, err
	}
	s.logger.Debug("Saved record", logger.String("id", stored.ID))
	return stored, nil
}

// Seed inserts records keeping their own createdAt
func (s *RecordStorage) Seed(ctx context.Context, records ...inspection.Record) error {
	for _, r := range records {
		if err := s.insert(ctx, storage.Stamp(r, r.CreatedAt)); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStorage) insert(ctx context.Context, stored inspection.Stored) error {
	items, err := encodeItems(stored.InspectionItems)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO inspection_records
		(id, company_name, drawing_number, part_number, part_name, inspector, comment, inspection_items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		stored.ID,
		stored.CompanyName,
		stored.DrawingNumber,
		stored.PartNumber,
		stored.PartName,
		stored.Inspector,
		stored.Comment,
		items,
		stored.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspection record: %w", err)
	}
	return nil
}

const selectRecords = `
	SELECT id::text, company_name, drawing_number, part_number, part_name, inspector, comment, inspection_items, created_at
	FROM inspection_records`

// List returns every record ordered by createdAt
func (s *RecordStorage) List(ctx context.Context) ([]inspection.Stored, error) {
	rows, err := s.db.Query(ctx, selectRecords+` ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspection records: %w", err)
	}
	defer rows.Close()

	var out []inspection.Stored
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inspection records: %w", err)
	}
	return out, nil
}

// Get returns the record with the given id
func (s *RecordStorage) Get(ctx context.Context, id string) (inspection.Stored, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, selectRecords+` WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return inspection.Stored{}, storage.ErrNotFound
	}
	return rec, err
}

// Close releases the pool
func (s *RecordStorage) Close() error {
	s.db.Close()
	return nil
}

func scanRecord(row pgx.Row) (inspection.Stored, error) {
	var rec inspection.Stored
	var items []byte
	err := row.Scan(
		&rec.ID,
		&rec.CompanyName,
		&rec.DrawingNumber,
		&rec.PartNumber,
		&rec.PartName,
		&rec.Inspector,
		&rec.Comment,
		&items,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan inspection record: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.InspectionItems, err = decodeItems(items); err != nil {
		return rec, err
	}
	return rec, nil
}

func encodeItems(items []inspection.LineItem) ([]byte, error) {
	if len(items) == 0 {
		items = []inspection.LineItem{inspection.BlankLineItem()}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inspection items: %w", err)
	}
	return b, nil
}

func decodeItems(b []byte) ([]inspection.LineItem, error) {
	var items []inspection.LineItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("failed to decode inspection items: %w", err)
	}
	if len(items) == 0 {
		items = []inspection.LineItem{inspection.BlankLineItem()}
	}
	return items, nil
}
