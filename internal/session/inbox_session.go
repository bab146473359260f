// Package session keeps chat histories for the HTTP surface. The core never sees
// sessions; it receives the history as an explicit argument on every turn.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"inbox_server/core/domain"
)

const (
	DefaultTTL      = 30 * time.Minute
	DefaultMaxTurns = 40
	cleanupInterval = 5 * time.Minute
)

// Session is one conversation. Turns on the same session are serialized.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu   sync.Mutex // held for a whole turn
	mu       sync.Mutex // guards history and lastUsed
	history  []domain.Turn
	lastUsed time.Time
	maxTurns int
}

// History returns a copy of the stored turns.
func (s *Session) History() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.history...)
}

// Turn runs fn with the current history while holding the session's turn lock.
// The history fn returns replaces the stored one only when fn succeeds.
func (s *Session) Turn(fn func(history []domain.Turn) ([]domain.Turn, error)) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	updated, err := fn(s.History())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxTurns > 0 && len(updated) > s.maxTurns {
		updated = updated[len(updated)-s.maxTurns:]
	}
	s.history = updated
	s.lastUsed = time.Now()
	return nil
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// Manager manages conversation sessions with TTL support
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	maxTurns int
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager with the default TTL and history cap.
func NewManager() *Manager {
	return NewManagerWithTTL(DefaultTTL, DefaultMaxTurns)
}

// NewManagerWithTTL creates a session manager with a custom TTL and history cap.
func NewManagerWithTTL(ttl time.Duration, maxTurns int) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		maxTurns: maxTurns,
		stopCh:   make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// GetOrCreate gets an existing session or creates a new one. An empty id gets
// a fresh uuid.
func (m *Manager) GetOrCreate(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if s, ok := m.sessions[sessionID]; ok {
		s.touch()
		return s
	}

	now := time.Now()
	s := &Session{
		ID:        sessionID,
		CreatedAt: now,
		history:   []domain.Turn{},
		lastUsed:  now,
		maxTurns:  m.maxTurns,
	}
	m.sessions[sessionID] = s
	return s
}

// Get retrieves a session by ID
func (m *Manager) Get(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// Delete removes a session and reports whether it existed.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return ok
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

// cleanup removes sessions idle for longer than the TTL.
func (m *Manager) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			delete(m.sessions, id)
		}
	}
}

// Stop stops the cleanup goroutine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
