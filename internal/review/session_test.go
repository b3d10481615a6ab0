package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/normalize"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/storage/memory"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

func result(company string) ocr.Result {
	return ocr.Result{Result: normalize.Result{
		Record: inspection.Record{CompanyName: company, InspectionItems: []inspection.LineItem{{Target: company}}},
		Source: normalize.SourceRawText,
	}}
}

func TestStaleTicketIsDiscarded(t *testing.T) {
	s := &Session{}
	first := s.Begin()
	second := s.Begin()

	if !s.Deliver(second, result("new")) {
		t.Fatal("current ticket rejected")
	}
	if s.Deliver(first, result("old")) {
		t.Fatal("stale ticket accepted")
	}
	d, ok := s.Draft()
	if !ok || d.Record.CompanyName != "new" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestEditAndCommit(t *testing.T) {
	s := &Session{}
	s.Deliver(s.Begin(), result("acme"))

	rec := inspection.Record{CompanyName: "acme corrected"}
	d := s.Edit(rec)
	if !d.Edited || len(d.Record.InspectionItems) != 1 {
		t.Fatalf("edit = %+v", d)
	}

	store := memory.New(logger.Nop())
	stored, err := s.Commit(context.Background(), store)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if stored.CompanyName != "acme corrected" || stored.ID == "" {
		t.Fatalf("stored = %+v", stored)
	}
	if _, ok := s.Draft(); ok {
		t.Fatal("draft not cleared after commit")
	}
	if _, err := s.Commit(context.Background(), store); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("second commit err = %v", err)
	}
}

func TestDraftIsCopied(t *testing.T) {
	s := &Session{}
	res := result("a")
	s.Deliver(s.Begin(), res)
	res.Record.InspectionItems[0].Target = "mutated"

	d, _ := s.Draft()
	d.Record.InspectionItems[0].Target = "also mutated"

	again, _ := s.Draft()
	if again.Record.InspectionItems[0].Target != "a" {
		t.Fatalf("draft aliased: %+v", again.Record.InspectionItems)
	}
}

func TestClearDiscardsInFlight(t *testing.T) {
	s := &Session{}
	tk := s.Begin()
	s.Clear()
	if s.Deliver(tk, result("late")) {
		t.Fatal("result delivered after clear")
	}
}

// blockingExtractor returns its result only when released
type blockingExtractor struct {
	mu      sync.Mutex
	gates   []chan ocr.Result
	started chan struct{}
}

func (b *blockingExtractor) Validate(img extraction.Image) (extraction.Image, error) {
	return extraction.Validate(img, 0)
}

func (b *blockingExtractor) Extract(ctx context.Context, img extraction.Image) (ocr.Result, error) {
	gate := make(chan ocr.Result)
	b.mu.Lock()
	b.gates = append(b.gates, gate)
	b.mu.Unlock()
	b.started <- struct{}{}
	return <-gate, nil
}

func (b *blockingExtractor) release(i int, res ocr.Result) {
	b.mu.Lock()
	gate := b.gates[i]
	b.mu.Unlock()
	gate <- res
}

func TestManagerSupersededExtraction(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{})}
	m := NewManager(ex, logger.Nop())
	img := extraction.Image{MediaType: extraction.MediaTypePNG, Data: []byte{1}}

	errs := make(chan error, 2)
	go func() {
		_, err := m.Extract(context.Background(), "s1", img)
		errs <- err
	}()
	<-ex.started
	go func() {
		_, err := m.Extract(context.Background(), "s1", img)
		errs <- err
	}()
	<-ex.started

	ex.release(1, result("second"))
	if err := <-errs; err != nil {
		t.Fatalf("newer extraction: %v", err)
	}
	ex.release(0, result("first"))
	if err := <-errs; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("older extraction err = %v", err)
	}

	s, ok := m.Lookup("s1")
	if !ok {
		t.Fatal("session missing after extraction")
	}
	d, ok := s.Draft()
	if !ok || d.Record.CompanyName != "second" {
		t.Fatalf("draft = %+v", d)
	}
}

type failingExtractor struct{}

func (failingExtractor) Validate(img extraction.Image) (extraction.Image, error) {
	return extraction.Validate(img, 0)
}

func (failingExtractor) Extract(ctx context.Context, img extraction.Image) (ocr.Result, error) {
	return ocr.Result{}, extraction.ErrUnsupportedMediaType
}

func TestManagerExtractErrorKeepsDraft(t *testing.T) {
	m := NewManager(failingExtractor{}, logger.Nop())
	m.Edit("s", inspection.Record{CompanyName: "kept"})

	img := extraction.Image{MediaType: extraction.MediaTypePNG, Data: []byte{1}}
	if _, err := m.Extract(context.Background(), "s", img); !errors.Is(err, extraction.ErrUnsupportedMediaType) {
		t.Fatalf("err = %v", err)
	}
	s, ok := m.Lookup("s")
	if !ok {
		t.Fatal("session with a draft was evicted")
	}
	d, ok := s.Draft()
	if !ok || d.Record.CompanyName != "kept" {
		t.Fatalf("draft = %+v", d)
	}

	m.Drop("s")
	if _, ok := m.Lookup("s"); ok {
		t.Fatal("session not dropped")
	}
}

func TestRejectedUploadKeepsInFlightExtraction(t *testing.T) {
	ex := &blockingExtractor{started: make(chan struct{})}
	m := NewManager(ex, logger.Nop())

	errs := make(chan error, 1)
	go func() {
		_, err := m.Extract(context.Background(), "s1", extraction.Image{MediaType: extraction.MediaTypePNG, Data: []byte{1}})
		errs <- err
	}()
	<-ex.started

	bad := extraction.Image{MediaType: "text/plain", Data: []byte("not an image")}
	if _, err := m.Extract(context.Background(), "s1", bad); !errors.Is(err, extraction.ErrUnsupportedMediaType) {
		t.Fatalf("bad upload err = %v", err)
	}

	ex.release(0, result("valid"))
	if err := <-errs; err != nil {
		t.Fatalf("in-flight extraction: %v", err)
	}
	s, ok := m.Lookup("s1")
	if !ok {
		t.Fatal("session missing")
	}
	if d, ok := s.Draft(); !ok || d.Record.CompanyName != "valid" {
		t.Fatalf("draft = %+v", d)
	}
}

func TestRejectedUploadsCreateNoSessions(t *testing.T) {
	m := NewManager(failingExtractor{}, logger.Nop())
	bad := extraction.Image{MediaType: "application/pdf", Data: []byte("%PDF")}
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("client-%d", i)
		if _, err := m.Extract(context.Background(), id, bad); !errors.Is(err, extraction.ErrUnsupportedMediaType) {
			t.Fatalf("err = %v", err)
		}
	}
	// Passes validation but the extractor fails
	ok := extraction.Image{MediaType: extraction.MediaTypeJPEG, Data: []byte{0xff, 0xd8}}
	if _, err := m.Extract(context.Background(), "late", ok); err == nil {
		t.Fatal("want extractor error")
	}
	if n := m.Len(); n != 0 {
		t.Fatalf("sessions = %d, want 0", n)
	}
}

func TestCommitAndDropEvictSession(t *testing.T) {
	m := NewManager(failingExtractor{}, logger.Nop())
	store := memory.New(logger.Nop())

	m.Edit("a", inspection.Record{CompanyName: "a"})
	m.Edit("b", inspection.Record{CompanyName: "b"})
	if n := m.Len(); n != 2 {
		t.Fatalf("sessions = %d, want 2", n)
	}

	if _, err := m.Commit(context.Background(), "a", store); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, ok := m.Lookup("a"); ok {
		t.Fatal("committed session kept")
	}
	m.Drop("b")
	if n := m.Len(); n != 0 {
		t.Fatalf("sessions = %d, want 0", n)
	}

	if _, err := m.Commit(context.Background(), "missing", store); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("commit missing err = %v", err)
	}
	if n := m.Len(); n != 0 {
		t.Fatalf("commit of unknown session left %d sessions", n)
	}
}
