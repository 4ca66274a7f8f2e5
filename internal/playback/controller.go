// Package playback owns the single active playback session of a chat session.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
)

// State of the controller
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

// Controller plays one asset at a time on an AudioOutput.
// Starting a new playback stops the active one and waits for it to release
// its stream before the next stream is opened.
type Controller struct {
	output  repositories.AudioOutput
	metrics *telemetry.Metrics
	logger  *zap.Logger

	// ops serializes Play, Stop and Close so stop-then-start is atomic
	ops sync.Mutex

	mu     sync.Mutex
	active *session
	closed bool
}

type session struct {
	cancel context.CancelFunc
	done   chan struct{}
	// reason is set under Controller.mu before cancel is called
	reason string
}

// NewController creates an idle controller
func NewController(output repositories.AudioOutput, metrics *telemetry.Metrics, logger *zap.Logger) *Controller {
	return &Controller{
		output:  output,
		metrics: metrics,
		logger:  logger,
	}
}

// Play starts rendering asset. A nil asset is ignored.
func (c *Controller) Play(asset *entities.AudioAsset) error {
	if asset == nil {
		return nil
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return domain.ErrSessionClosed
	}

	c.stopActive(telemetry.PlaybackSuperseded)

	stream, err := c.output.Open(asset.SampleRate, asset.ChannelCount())
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.active = s
	c.mu.Unlock()

	c.metrics.PlaybackStarted(ctx)
	c.logger.Debug("Playback started",
		zap.Int("sampleRate", asset.SampleRate),
		zap.Int("channels", asset.ChannelCount()),
		zap.Duration("duration", asset.Duration()))

	go c.run(ctx, s, stream, asset)
	return nil
}

func (c *Controller) run(ctx context.Context, s *session, stream repositories.AudioStream, asset *entities.AudioAsset) {
	defer close(s.done)

	playErr := stream.Play(ctx, asset)
	if err := stream.Close(); err != nil {
		c.logger.Warn("Failed to close audio stream", zap.Error(err))
	}

	c.mu.Lock()
	reason := s.reason
	c.mu.Unlock()

	if reason == "" {
		reason = telemetry.PlaybackCompleted
		if playErr != nil && !errors.Is(playErr, context.Canceled) {
			reason = telemetry.PlaybackFailed
			c.logger.Error("Playback failed", zap.Error(playErr))
		}
	}

	s.cancel()
	c.metrics.PlaybackEnded(context.Background(), reason)
	c.logger.Debug("Playback ended", zap.String("reason", reason))

	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
}

// stopActive cancels the active session and waits until its stream is closed
func (c *Controller) stopActive(reason string) {
	c.mu.Lock()
	s := c.active
	if s != nil {
		s.reason = reason
		c.active = nil
	}
	c.mu.Unlock()

	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Stop ends the active playback, if any
func (c *Controller) Stop() {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.stopActive(telemetry.PlaybackStopped)
}

// State reports whether a playback session is active
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return StatePlaying
	}
	return StateIdle
}

// Close stops playback and rejects further Play calls
func (c *Controller) Close() {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stopActive(telemetry.PlaybackStopped)
}
