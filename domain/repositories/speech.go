package repositories

import (
	"context"

	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// SpeechPrompt is a single, self-contained request to the speech model
type SpeechPrompt struct {
	Instruction string         `json:"instruction"`
	Voice       entities.Voice `json:"voice"`
}

// InlineAudio is the audio payload returned by the speech model
type InlineAudio struct {
	MIMEType string `json:"mime_type"`
	// Data is the base64 encoded PCM payload, exactly as received
	Data string `json:"data"`
}

// SpeechGenerator abstracts the remote text-to-speech model
type SpeechGenerator interface {
	// GenerateSpeech performs one request. A nil InlineAudio with a nil error means
	// the model answered without producing audio.
	GenerateSpeech(ctx context.Context, prompt SpeechPrompt) (*InlineAudio, error)
}

// SpeechTranslator turns user text into decoded audio in the target language
type SpeechTranslator interface {
	// RequestSpeech returns nil, nil when the model produced no audio
	RequestSpeech(ctx context.Context, text, targetLanguage string, voice entities.Voice) (*entities.AudioAsset, error)
}
