package identity

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukuvi/mukuvios/pkg/logger"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is one logged-in terminal. Sessions live only in memory; a
// restart logs everyone out.
type Session struct {
	ID           string
	Username     string
	CurrentDir   string
	History      []string
	CreatedAt    time.Time
	LastActivity time.Time
}

// sessionStore guards the in-memory session map.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

// CreateSession opens a session for an authenticated user. homeDir becomes
// the session's initial working directory.
func (m *Manager) CreateSession(username, homeDir string) *Session {
	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		Username:     username,
		CurrentDir:   homeDir,
		CreatedAt:    now,
		LastActivity: now,
	}

	m.sessions.mu.Lock()
	m.sessions.sessions[session.ID] = session
	m.sessions.mu.Unlock()

	logger.Info(logger.AreaSession, "session %s opened for %s", session.ID, username)
	return session
}

// GetSession returns the live session with the given id.
func (m *Manager) GetSession(sessionID string) (*Session, error) {
	m.sessions.mu.RLock()
	defer m.sessions.mu.RUnlock()

	session, ok := m.sessions.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// TouchSession updates the activity timestamp of a session.
func (m *Manager) TouchSession(sessionID string) {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	if session, ok := m.sessions.sessions[sessionID]; ok {
		session.LastActivity = time.Now()
	}
}

// SetCurrentDir updates the working directory of a session.
func (m *Manager) SetCurrentDir(sessionID, dir string) error {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	session, ok := m.sessions.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	session.CurrentDir = dir
	return nil
}

// AppendHistory records an executed command line in the session history.
func (m *Manager) AppendHistory(sessionID, line string) {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	session, ok := m.sessions.sessions[sessionID]
	if !ok {
		return
	}
	session.History = append(session.History, line)
	if len(session.History) > maxHistoryEntries {
		session.History = session.History[len(session.History)-maxHistoryEntries:]
	}
}

// maxHistoryEntries bounds the per-session command history.
const maxHistoryEntries = 100

// Logout closes a session. Closing an unknown session is not an error.
func (m *Manager) Logout(sessionID string) {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	if session, ok := m.sessions.sessions[sessionID]; ok {
		logger.Info(logger.AreaSession, "session %s closed for %s", sessionID, session.Username)
		delete(m.sessions.sessions, sessionID)
	}
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.sessions.mu.RLock()
	defer m.sessions.mu.RUnlock()
	return len(m.sessions.sessions)
}

// CleanupInactiveSessions drops sessions idle for longer than maxIdle and
// returns how many were removed.
func (m *Manager) CleanupInactiveSessions(maxIdle time.Duration) int {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for id, session := range m.sessions.sessions {
		if session.LastActivity.Before(cutoff) {
			delete(m.sessions.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		logger.Info(logger.AreaSession, "cleaned up %d inactive sessions", removed)
	}
	return removed
}
