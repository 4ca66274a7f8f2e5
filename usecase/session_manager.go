package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/playback"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
)

// SessionManager keeps the live chat sessions of the process in memory
type SessionManager struct {
	speech   repositories.SpeechTranslator
	outputs  repositories.AudioOutputFactory
	defaults Defaults
	metrics  *telemetry.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	speech repositories.SpeechTranslator,
	outputs repositories.AudioOutputFactory,
	defaults Defaults,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *SessionManager {
	return &SessionManager{
		speech:   speech,
		outputs:  outputs,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session
func (m *SessionManager) Create() *Session {
	id := uuid.New().String()
	session := NewSession(id, m.speech, m.outputs.OutputFor(id), m.defaults, m.metrics, m.logger)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	m.metrics.SessionOpened(context.Background())
	m.logger.Info("Session created", zap.String("sessionID", id))
	return session
}

// Get returns a live session
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Close ends a session and forgets it
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	session.Close()
	m.metrics.SessionClosed(context.Background())
	return nil
}

// Count returns the number of live sessions
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseIdle closes every session that has not changed for longer than maxIdle
// and is not playing audio. It returns the number of sessions closed.
func (m *SessionManager) CloseIdle(maxIdle time.Duration) int {
	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		candidates = append(candidates, session)
	}
	m.mu.RUnlock()

	now := time.Now()
	closed := 0
	for _, session := range candidates {
		idle, err := session.IdleSince(now)
		if err != nil || idle < maxIdle || session.PlaybackState() != playback.StateIdle {
			continue
		}
		if m.Close(session.ID()) == nil {
			m.logger.Info("Closed idle session",
				zap.String("sessionID", session.ID()),
				zap.Duration("idle", idle))
			closed++
		}
	}
	return closed
}

// CloseAll ends every session; used on shutdown
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}
