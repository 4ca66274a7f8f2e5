package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Speech request outcomes
const (
	SpeechOutcomeAudio   = "audio"
	SpeechOutcomeNoAudio = "no_audio"
	SpeechOutcomeConfig  = "config"
	SpeechOutcomeError   = "error"
)

// Reasons a playback session ends
const (
	PlaybackCompleted  = "completed"
	PlaybackStopped    = "stopped"
	PlaybackSuperseded = "superseded"
	PlaybackFailed     = "failed"
)

// Metrics groups the instruments recorded by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	speechRequests   metric.Int64Counter
	speechDuration   metric.Float64Histogram
	turnTransitions  metric.Int64Counter
	playbackSessions metric.Int64Counter
	sessionsActive   metric.Int64UpDownCounter
	playbackActive   metric.Int64UpDownCounter
}

// NewMetrics creates every instrument on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.speechRequests, err = meter.Int64Counter("speech_requests",
		metric.WithDescription("Speech requests sent to the model, by outcome")); err != nil {
		return nil, fmt.Errorf("create speech_requests: %w", err)
	}
	if m.speechDuration, err = meter.Float64Histogram("speech_request_duration",
		metric.WithDescription("Round trip time of speech requests"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create speech_request_duration: %w", err)
	}
	if m.turnTransitions, err = meter.Int64Counter("turn_transitions",
		metric.WithDescription("Assistant turns resolved, by outcome")); err != nil {
		return nil, fmt.Errorf("create turn_transitions: %w", err)
	}
	if m.playbackSessions, err = meter.Int64Counter("playback_sessions",
		metric.WithDescription("Finished playback sessions, by reason")); err != nil {
		return nil, fmt.Errorf("create playback_sessions: %w", err)
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("sessions_active",
		metric.WithDescription("Open chat sessions")); err != nil {
		return nil, fmt.Errorf("create sessions_active: %w", err)
	}
	if m.playbackActive, err = meter.Int64UpDownCounter("playback_active",
		metric.WithDescription("Playback sessions currently producing audio")); err != nil {
		return nil, fmt.Errorf("create playback_active: %w", err)
	}

	return &m, nil
}

// RecordSpeechRequest counts one speech request and its latency
func (m *Metrics) RecordSpeechRequest(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.speechRequests.Add(ctx, 1, attrs)
	m.speechDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTurnTransition counts an assistant turn reaching a terminal outcome
func (m *Metrics) RecordTurnTransition(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.turnTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// PlaybackStarted marks a playback session as producing audio
func (m *Metrics) PlaybackStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.playbackActive.Add(ctx, 1)
}

// PlaybackEnded records why a playback session finished
func (m *Metrics) PlaybackEnded(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.playbackActive.Add(ctx, -1)
	m.playbackSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SessionOpened increments the open session gauge
func (m *Metrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// SessionClosed decrements the open session gauge
func (m *Metrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}
