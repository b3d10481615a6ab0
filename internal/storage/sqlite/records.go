package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// timeLayout is fixed width so lexical order of the column matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordStorage handles storage of inspection records
type RecordStorage struct {
	db     *sql.DB
	now    func() time.Time
	logger *logger.Logger
}

var _ storage.Store = (*RecordStorage)(nil)

// Open opens (or creates) the database file and prepares its tables
func Open(path string, logger *logger.Logger) (*RecordStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Single writer keeps sqlite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	s, err := NewRecordStorage(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewRecordStorage creates a new SQLite record storage on an open handle
func NewRecordStorage(db *sql.DB, logger *logger.Logger) (*RecordStorage, error) {
	s := &RecordStorage{
		db:     db,
		now:    time.Now,
		logger: logger.Named("sqlite-records"),
	}

	if err := s.initDB(); err != nil {
		return nil, err
	}

	return s, nil
}

// initDB initializes the database tables
func (s *RecordStorage) initDB() error {
	_, err := s.db.Exec(`PRAGMA foreign_keys = ON`)
	if err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS inspection_records (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			drawing_number TEXT NOT NULL,
			part_number TEXT NOT NULL,
			part_name TEXT NOT NULL,
			inspector TEXT NOT NULL,
			comment TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create inspection_records table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS inspection_items (
			record_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			target TEXT NOT NULL,
			symbol TEXT NOT NULL,
			dimension TEXT NOT NULL,
			lower_tolerance TEXT NOT NULL,
			upper_tolerance TEXT NOT NULL,
			min_allowable_dimension TEXT NOT NULL,
			quantity TEXT NOT NULL,
			measurement1 TEXT NOT NULL,
			measurement2 TEXT NOT NULL,
			overall_judgment TEXT NOT NULL,
			judgment1 TEXT NOT NULL,
			judgment2 TEXT NOT NULL,
			remarks TEXT NOT NULL,
			PRIMARY KEY (record_id, position),
			FOREIGN KEY (record_id) REFERENCES inspection_records(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create inspection_items table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_inspection_records_created_at ON inspection_records(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create record index: %w", err)
	}

	return nil
}

// Save stores a record and its items in one transaction
func (s *RecordStorage) Save(ctx context.Context, record inspection.Record) (inspection.Stored, error) {
	stored := storage.Stamp(record, s.now())
	if err := s.insert(ctx, stored); err != nil {
		return inspection.Stored{}, err
	}
	s.logger.Debug("Saved record",
		logger.String("id", stored.ID),
		logger.Int("items", len(stored.InspectionItems)))
	return stored, nil
}

// Seed inserts records keeping their own createdAt
func (s *RecordStorage) Seed(ctx context.Context, records ...inspection.Record) error {
	for _, r := range records {
		stored := storage.Stamp(r, r.CreatedAt)
		if err := s.insert(ctx, stored); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStorage) insert(ctx context.Context, stored inspection.Stored) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inspection_records
		(id, company_name, drawing_number, part_number, part_name, inspector, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID,
		stored.CompanyName,
		stored.DrawingNumber,
		stored.PartNumber,
		stored.PartName,
		stored.Inspector,
		stored.Comment,
		stored.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspection record: %w", err)
	}

	for i, item := range stored.InspectionItems {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO inspection_items
			(record_id, position, target, symbol, dimension, lower_tolerance, upper_tolerance,
			 min_allowable_dimension, quantity, measurement1, measurement2, overall_judgment,
			 judgment1, judgment2, remarks)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			stored.ID, i,
			item.Target,
			item.Symbol,
			item.Dimension,
			item.LowerTolerance,
			item.UpperTolerance,
			item.MinAllowableDimension,
			item.Quantity,
			item.Measurement1,
			item.Measurement2,
			item.OverallJudgment,
			item.Judgment1,
			item.Judgment2,
			item.Remarks,
		)
		if err != nil {
			return fmt.Errorf("failed to insert inspection item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inspection record: %w", err)
	}
	return nil
}

// List returns every record ordered by createdAt
func (s *RecordStorage) List(ctx context.Context) ([]inspection.Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_name, drawing_number, part_number, part_name, inspector, comment, created_at
		FROM inspection_records
		ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspection records: %w", err)
	}
	records, err := scanRecordRows(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].InspectionItems = items[records[i].ID]
		records[i].EnsureItems()
	}
	return records, nil
}

// Get returns the record with the given id
func (s *RecordStorage) Get(ctx context.Context, id string) (inspection.Stored, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_name, drawing_number, part_number, part_name, inspector, comment, created_at
		FROM inspection_records
		WHERE id = ?`,
		id,
	)
	if err != nil {
		return inspection.Stored{}, fmt.Errorf("failed to query inspection record: %w", err)
	}
	records, err := scanRecordRows(rows)
	rows.Close()
	if err != nil {
		return inspection.Stored{}, err
	}
	if len(records) == 0 {
		return inspection.Stored{}, storage.ErrNotFound
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return inspection.Stored{}, err
	}
	rec := records[0]
	rec.InspectionItems = items[id]
	rec.EnsureItems()
	return rec, nil
}

// loadItems returns items grouped by record id; an empty id loads all
func (s *RecordStorage) loadItems(ctx context.Context, id string) (map[string][]inspection.LineItem, error) {
	query := `SELECT record_id, target, symbol, dimension, lower_tolerance, upper_tolerance,
		min_allowable_dimension, quantity, measurement1, measurement2, overall_judgment,
		judgment1, judgment2, remarks
		FROM inspection_items`
	var args []any
	if id != "" {
		query += ` WHERE record_id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY record_id, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspection items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]inspection.LineItem)
	for rows.Next() {
		var recordID string
		var item inspection.LineItem
		if err := rows.Scan(
			&recordID,
			&item.Target,
			&item.Symbol,
			&item.Dimension,
			&item.LowerTolerance,
			&item.UpperTolerance,
			&item.MinAllowableDimension,
			&item.Quantity,
			&item.Measurement1,
			&item.Measurement2,
			&item.OverallJudgment,
			&item.Judgment1,
			&item.Judgment2,
			&item.Remarks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inspection item: %w", err)
		}
		items[recordID] = append(items[recordID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inspection items: %w", err)
	}
	return items, nil
}

// Close closes the underlying database
func (s *RecordStorage) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("failed to close sqlite database: %w", err)
	}
	return nil
}

// scanRecordRows scans database rows into record headers
func scanRecordRows(rows *sql.Rows) ([]inspection.Stored, error) {
	var records []inspection.Stored
	for rows.Next() {
		var record inspection.Stored
		var createdAt string

		if err := rows.Scan(
			&record.ID,
			&record.CompanyName,
			&record.DrawingNumber,
			&record.PartNumber,
			&record.PartName,
			&record.Inspector,
			&record.Comment,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inspection record: %w", err)
		}

		var err error
		record.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inspection records: %w", err)
	}

	return records, nil
}
