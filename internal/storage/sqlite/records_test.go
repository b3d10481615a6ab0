package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

func openTestStore(t *testing.T) *RecordStorage {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"), logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 30, 0, 123456789, time.UTC)
	s.now = func() time.Time { return now }

	in := inspection.Fallback(time.Time{})
	in.InspectionItems = append(in.InspectionItems, inspection.LineItem{Target: "内径", Remarks: "再測定"})

	saved, err := s.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !saved.CreatedAt.Equal(now) {
		t.Fatalf("createdAt = %v", saved.CreatedAt)
	}

	got, err := s.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("stored createdAt = %v", got.CreatedAt)
	}
	got.CreatedAt = saved.CreatedAt
	if !reflect.DeepEqual(got, saved) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, saved)
	}
}

func TestListOrdersByCreatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{3 * time.Hour, time.Second, 2 * time.Hour}
	for i, off := range offsets {
		at := base.Add(off)
		s.now = func() time.Time { return at }
		if _, err := s.Save(ctx, inspection.Record{PartNumber: string(rune('a' + i))}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Fatalf("not ordered: %v before %v", list[i].CreatedAt, list[i-1].CreatedAt)
		}
	}
	if list[0].PartNumber != "b" || list[2].PartNumber != "a" {
		t.Fatalf("order = %s %s %s", list[0].PartNumber, list[1].PartNumber, list[2].PartNumber)
	}
	for _, r := range list {
		if len(r.InspectionItems) != 1 {
			t.Fatalf("record %s has %d items", r.ID, len(r.InspectionItems))
		}
	}
}

func TestSeedAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	s, err := Open(path, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Seed(context.Background(), inspection.Samples()...); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	s.Close()

	reopened, err := Open(path, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	list, err := reopened.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	samples := inspection.Samples()
	if len(list) != len(samples) {
		t.Fatalf("len = %d", len(list))
	}
	if !list[0].CreatedAt.Equal(samples[0].CreatedAt) || list[0].CompanyName != samples[0].CompanyName {
		t.Fatalf("first = %+v", list[0])
	}
}

func TestGetUnknown(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
