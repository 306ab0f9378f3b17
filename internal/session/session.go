// Package session owns the per-user session registry. Each session
// exclusively owns one portfolio; a per-session mutex serializes settlement
// so a double-submitted form cannot race the wallet.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/electro-bazaar/internal/portfolio"
)

// Session binds an ID to its portfolio. Lock the session (not the manager)
// for the whole parse→evaluate→settle round.
type Session struct {
	ID        string
	Portfolio *portfolio.Portfolio

	mu sync.Mutex
}

// Lock serializes settlement for this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the settlement lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Manager tracks all live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seed     portfolio.Seed
}

// NewManager creates a session manager seeding new portfolios from seed.
func NewManager(seed portfolio.Seed) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		seed:     seed,
	}
}

// GetOrCreate returns the session for id, creating it with seed holdings on
// first contact. An empty id gets a fresh uuid.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if s, ok := m.sessions[id]; ok {
		return s
	}

	s := &Session{ID: id, Portfolio: portfolio.New(m.seed)}
	m.sessions[id] = s
	slog.Debug("session created", "session_id", id)
	return s
}

// Get returns an existing session, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
