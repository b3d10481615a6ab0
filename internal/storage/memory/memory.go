package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Store keeps records in process memory. Contents are lost on restart.
type Store struct {
	mu      sync.RWMutex
	records []inspection.Stored
	now     func() time.Time
	logger  *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store
func New(logger *logger.Logger) *Store {
	return &Store{
		now:    time.Now,
		logger: logger.Named("memory-store"),
	}
}

// Seed appends records keeping their own createdAt. Used for demo data.
func (s *Store) Seed(records ...inspection.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records = append(s.records, inspection.Stored{ID: uuid.NewString(), Record: r.Clone()})
	}
	s.logger.Debug("Seeded records", logger.Int("count", len(records)))
}

// Save stamps and appends a copy of record
func (s *Store) Save(ctx context.Context, record inspection.Record) (inspection.Stored, error) {
	if err := ctx.Err(); err != nil {
		return inspection.Stored{}, err
	}
	stored := storage.Stamp(record, s.now())

	s.mu.Lock()
	s.records = append(s.records, stored)
	s.mu.Unlock()

	s.logger.Debug("Saved record", logger.String("id", stored.ID))
	return copyStored(stored), nil
}

// List returns copies of every record ordered by createdAt
func (s *Store) List(ctx context.Context) ([]inspection.Stored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]inspection.Stored, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, copyStored(r))
	}
	s.mu.RUnlock()

	storage.SortStored(out)
	return out, nil
}

// Get returns a copy of the record with the given id
func (s *Store) Get(ctx context.Context, id string) (inspection.Stored, error) {
	if err := ctx.Err(); err != nil {
		return inspection.Stored{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return copyStored(r), nil
		}
	}
	return inspection.Stored{}, storage.ErrNotFound
}

// Close is a no-op
func (s *Store) Close() error { return nil }

func copyStored(r inspection.Stored) inspection.Stored {
	return inspection.Stored{ID: r.ID, Record: r.Record.Clone()}
}
