package session

import (
	"fmt"
	"sync"
)

// Manager owns the live sessions, one per profile. Opening the same
// profile twice returns the existing session; releasing it tears the
// timers down.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	open     func(profileID string) (*Session, error)
}

// NewManager creates a session manager. The open function builds and
// starts a session for a profile on first acquisition.
func NewManager(open func(profileID string) (*Session, error)) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		open:     open,
	}
}

// Acquire returns the session for a profile, starting one if needed.
func (m *Manager) Acquire(profileID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[profileID]; ok {
		return s, nil
	}

	s, err := m.open(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for profile %s: %w", profileID, err)
	}
	m.sessions[profileID] = s
	return s, nil
}

// Peek returns the session for a profile without starting one.
func (m *Manager) Peek(profileID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[profileID]
}

// Release closes and removes the session for a profile, if any.
func (m *Manager) Release(profileID string) {
	m.mu.Lock()
	s := m.sessions[profileID]
	delete(m.sessions, profileID)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// CloseAll tears down every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
