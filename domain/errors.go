package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when a submission is missing text or names an unknown voice
	ErrInvalidRequest = errors.New("invalid speech request")
	// ErrTurnNotFound is returned when no turn with the given id exists in the conversation
	ErrTurnNotFound = errors.New("turn not found")
	// ErrTurnNotPending is returned when resolving a turn that already reached a terminal state
	ErrTurnNotPending = errors.New("turn is not pending")
	// ErrSessionNotFound is returned when no live session has the given id
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned by operations on a session that has ended
	ErrSessionClosed = errors.New("session closed")
)

// ConfigurationError reports a missing or invalid setting detected before any network call
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// DecodeError reports malformed base64 audio payloads
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio payload: illegal base64 data at offset %d", e.Offset)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FramingError reports PCM data whose length or layout does not form whole frames
type FramingError struct {
	Length       int
	ChannelCount int
	SampleRate   int
	Reason       string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("frame pcm audio: %s (bytes=%d, channels=%d, sampleRate=%d)",
		e.Reason, e.Length, e.ChannelCount, e.SampleRate)
}

// RequestError reports a failed round trip to the remote speech API
type RequestError struct {
	// StatusCode is the HTTP status returned by the API, zero when no response was received
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("speech request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("speech request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
