package gemini

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
)

const (
	mockSampleRate    = 24000
	mockBaseDuration  = 200 * time.Millisecond
	mockPerRune       = 40 * time.Millisecond
	mockMaxDuration   = 5 * time.Second
	mockAmplitude     = 0.3
	mockAudioMIMEType = "audio/L16;codec=pcm;rate=24000"
)

// mockPitch gives each voice a recognizable tone
var mockPitch = map[entities.Voice]float64{
	entities.VoiceKore:   440,
	entities.VoicePuck:   523.25,
	entities.VoiceZephyr: 392,
	entities.VoiceCharon: 220,
	entities.VoiceFenrir: 329.63,
}

// MockSpeechGenerator is an offline stand-in for the Gemini speech model.
// It answers with a 24 kHz mono tone, base64 encoded like the real API.
type MockSpeechGenerator struct {
	logger *zap.Logger
	delay  time.Duration
}

// Ensure MockSpeechGenerator implements the SpeechGenerator interface
var _ repositories.SpeechGenerator = (*MockSpeechGenerator)(nil)

// NewMockSpeechGenerator creates a mock generator that answers after delay
func NewMockSpeechGenerator(logger *zap.Logger, delay time.Duration) *MockSpeechGenerator {
	return &MockSpeechGenerator{logger: logger, delay: delay}
}

// GenerateSpeech implements repositories.SpeechGenerator
func (m *MockSpeechGenerator) GenerateSpeech(ctx context.Context, prompt repositories.SpeechPrompt) (*repositories.InlineAudio, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	duration := mockBaseDuration + time.Duration(utf8.RuneCountInString(prompt.Instruction))*mockPerRune
	if duration > mockMaxDuration {
		duration = mockMaxDuration
	}

	pitch, ok := mockPitch[prompt.Voice]
	if !ok {
		pitch = mockPitch[entities.DefaultVoice]
	}

	pcm := mockTone(pitch, duration)

	m.logger.Debug("Generated mock speech",
		zap.String("voice", string(prompt.Voice)),
		zap.Duration("duration", duration),
		zap.Int("bytes", len(pcm)))

	return &repositories.InlineAudio{
		MIMEType: mockAudioMIMEType,
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}, nil
}

// mockTone renders a sine wave as signed 16-bit little-endian mono PCM
func mockTone(frequency float64, duration time.Duration) []byte {
	frames := int(duration * mockSampleRate / time.Second)
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		v := mockAmplitude * math.Sin(2*math.Pi*frequency*float64(i)/mockSampleRate)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return out
}
