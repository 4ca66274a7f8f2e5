package usecase

import (
	"time"

	"go.uber.org/zap"
)

// SessionCleanupService closes sessions that have been idle for too long
type SessionCleanupService struct {
	manager     *SessionManager
	idleTimeout time.Duration
	interval    time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// NewSessionCleanupService creates a new session cleanup service
func NewSessionCleanupService(manager *SessionManager, idleTimeout, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	return &SessionCleanupService{
		manager:     manager,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started",
		zap.Duration("idleTimeout", s.idleTimeout),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *SessionCleanupService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup closes the sessions idle for longer than the timeout
func (s *SessionCleanupService) runCleanup() {
	closed := s.manager.CloseIdle(s.idleTimeout)
	if closed > 0 {
		s.logger.Info("Session cleanup completed",
			zap.Int("closed", closed),
			zap.Int("remaining", s.manager.Count()))
	}
}
