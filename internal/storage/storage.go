// Package storage defines the record store collaborator and its backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/inspect-ocr/internal/inspection"
)

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("record not found")

// Store persists inspection records. Save stamps createdAt and an id; stored
// records are never updated.
type Store interface {
	Save(ctx context.Context, record inspection.Record) (inspection.Stored, error)
	List(ctx context.Context) ([]inspection.Stored, error)
	Get(ctx context.Context, id string) (inspection.Stored, error)
	Close() error
}

// Stamp prepares a record for persistence: fresh id, createdAt = now (UTC),
// and a private copy of the item list.
func Stamp(record inspection.Record, now time.Time) inspection.Stored {
	rec := record.Clone()
	rec.EnsureItems()
	rec.CreatedAt = now.UTC()
	return inspection.Stored{ID: uuid.NewString(), Record: rec}
}

// SortStored orders records by createdAt, then id
func SortStored(records []inspection.Stored) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}
