package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/pcm"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
)

// sessionOutput plays audio by streaming PCM frames to every client of a session
type sessionOutput struct {
	hub       *Hub
	sessionID string
}

func (o *sessionOutput) Open(sampleRate, channels int) (repositories.AudioStream, error) {
	if sampleRate < 1 || channels < 1 {
		return nil, fmt.Errorf("unsupported output format: %d Hz, %d channels", sampleRate, channels)
	}
	return &sessionStream{
		hub:        o.hub,
		sessionID:  o.sessionID,
		playbackID: uuid.New().String(),
	}, nil
}

// sessionStream is one playback; it is used by a single goroutine
type sessionStream struct {
	hub        *Hub
	sessionID  string
	playbackID string
	started    bool
	completed  bool
}

// Play sends the asset in chunks paced at real time and returns once the last chunk's time has elapsed
func (s *sessionStream) Play(ctx context.Context, asset *entities.AudioAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.started = true
	s.hub.broadcastJSON(s.sessionID, &PlaybackStartMessage{
		BaseMessage: newBase(MessageTypePlaybackStart),
		SessionID:   s.sessionID,
		PlaybackID:  s.playbackID,
		SampleRate:  asset.SampleRate,
		Channels:    asset.ChannelCount(),
		Frames:      asset.FrameCount(),
		Encoding:    PCMEncoding,
	})

	chunk := s.hub.chunk
	framesPerChunk := int(int64(asset.SampleRate) * int64(chunk) / int64(time.Second))
	if framesPerChunk < 1 {
		framesPerChunk = 1
	}

	ticker := time.NewTicker(chunk)
	defer ticker.Stop()

	for from := 0; from < asset.FrameCount(); from += framesPerChunk {
		s.hub.Broadcast(s.sessionID, WriteData{
			Type:    websocket.BinaryMessage,
			Payload: pcm.EncodeFrames(asset, from, from+framesPerChunk),
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	s.completed = true
	return nil
}

// Close announces the end of the playback to the clients
func (s *sessionStream) Close() error {
	if !s.started {
		return nil
	}

	reason := telemetry.PlaybackStopped
	if s.completed {
		reason = telemetry.PlaybackCompleted
	}
	s.hub.broadcastJSON(s.sessionID, &PlaybackEndMessage{
		BaseMessage: newBase(MessageTypePlaybackEnd),
		SessionID:   s.sessionID,
		PlaybackID:  s.playbackID,
		Reason:      reason,
	})
	return nil
}
