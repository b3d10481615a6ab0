// Package review holds the per-client draft an operator corrects before it is
// registered. Each extraction is tagged with a ticket; a result carrying an
// old ticket is dropped so a slow response never overwrites a newer one.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/normalize"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/storage"
)

var (
	// ErrSuperseded means a newer extraction started before this one finished
	ErrSuperseded = errors.New("extraction superseded by a newer request")
	// ErrNoDraft means there is nothing to read or commit
	ErrNoDraft = errors.New("no draft in progress")
)

// Ticket identifies one extraction request within a session
type Ticket uint64

// Draft is the record under review and where it came from
type Draft struct {
	Record    inspection.Record `json:"record"`
	Source    normalize.Source  `json:"source"`
	ImageHash string            `json:"imageHash,omitempty"`
	Edited    bool              `json:"edited"`
}

// Session is one client's draft state
type Session struct {
	mu      sync.Mutex
	current Ticket
	draft   *Draft
	pending int
}

// Begin starts a new request and invalidates every older ticket
func (s *Session) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current
}

// Deliver stores res as the draft if t is still the latest ticket
func (s *Session) Deliver(t Ticket, res ocr.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != s.current {
		return false
	}
	rec := res.Record.Clone()
	rec.EnsureItems()
	s.draft = &Draft{Record: rec, Source: res.Source, ImageHash: res.ImageHash}
	return true
}

// Draft returns a copy of the current draft
func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, false
	}
	d := *s.draft
	d.Record = d.Record.Clone()
	return d, true
}

// Edit replaces the draft record with the operator's version. Editing with
// no draft starts a manual one.
func (s *Session) Edit(rec inspection.Record) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec = rec.Clone()
	rec.EnsureItems()
	if s.draft == nil {
		s.draft = &Draft{}
	}
	s.draft.Record = rec
	s.draft.Edited = true

	d := *s.draft
	d.Record = d.Record.Clone()
	return d
}

// Commit saves the draft and clears it. Pending extractions are discarded.
func (s *Session) Commit(ctx context.Context, store storage.Store) (inspection.Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return inspection.Stored{}, ErrNoDraft
	}
	stored, err := store.Save(ctx, s.draft.Record)
	if err != nil {
		return inspection.Stored{}, fmt.Errorf("failed to commit draft: %w", err)
	}
	s.draft = nil
	s.current++
	return stored, nil
}

// Clear drops the draft and any extraction still in flight
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = nil
	s.current++
}
