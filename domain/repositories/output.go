package repositories

import (
	"context"

	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// AudioOutput hands out output streams for playback
type AudioOutput interface {
	// Open acquires an output context running at the given format
	Open(sampleRate, channels int) (AudioStream, error)
}

// AudioStream is one acquired output context
type AudioStream interface {
	// Play renders the asset and blocks until every frame was output or ctx is done
	Play(ctx context.Context, asset *entities.AudioAsset) error
	// Close releases the output context
	Close() error
}

// AudioOutputFactory provides the output a chat session plays its audio on
type AudioOutputFactory interface {
	OutputFor(sessionID string) AudioOutput
}
