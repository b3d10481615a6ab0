package review

import (
	"context"
	"sync"

	"github.com/yegors/inspect-ocr/internal/extraction"
	"github.com/yegors/inspect-ocr/internal/inspection"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Manager owns the sessions keyed by client session id. A session exists
// only while it holds a draft or an extraction is in flight for it.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	extractor ocr.Extractor
	logger    *logger.Logger
}

// NewManager creates a new draft manager
func NewManager(extractor ocr.Extractor, logger *logger.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		extractor: extractor,
		logger:    logger.Named("review"),
	}
}

// Lookup returns the session for id if it exists
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len reports how many sessions are held
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// acquire returns the session for id, creating it, and marks it busy so it
// is not evicted until release
func (m *Manager) acquire(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{}
		m.sessions[id] = s
	}
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	return s
}

// release undoes acquire and evicts the session if nothing is left in it
func (m *Manager) release(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.mu.Lock()
	s.pending--
	idle := s.pending == 0 && s.draft == nil
	s.mu.Unlock()
	if idle && m.sessions[id] == s {
		delete(m.sessions, id)
	}
}

// Edit replaces the session draft with the operator's version, starting a
// manual draft when there is none
func (m *Manager) Edit(id string, rec inspection.Record) Draft {
	s := m.acquire(id)
	defer m.release(id, s)
	return s.Edit(rec)
}

// Commit saves the session draft and forgets the session
func (m *Manager) Commit(ctx context.Context, id string, store storage.Store) (inspection.Stored, error) {
	s := m.acquire(id)
	defer m.release(id, s)
	return s.Commit(ctx, store)
}

// Drop clears and forgets a session
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Clear()
	}
}

// Extract runs an extraction for the session and installs the result as its
// draft. ErrSuperseded is returned when a newer extraction began meanwhile.
// An upload that fails validation leaves the session untouched.
func (m *Manager) Extract(ctx context.Context, id string, img extraction.Image) (ocr.Result, error) {
	valid, err := m.extractor.Validate(img)
	if err != nil {
		return ocr.Result{}, err
	}

	s := m.acquire(id)
	defer m.release(id, s)
	ticket := s.Begin()

	res, err := m.extractor.Extract(ctx, valid)
	if err != nil {
		return ocr.Result{}, err
	}

	if !s.Deliver(ticket, res) {
		m.logger.Info("Discarded superseded extraction",
			logger.String("session", id),
			logger.Uint64("ticket", uint64(ticket)))
		return ocr.Result{}, ErrSuperseded
	}
	return res, nil
}
