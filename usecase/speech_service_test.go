package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
)

// fakeGenerator records prompts and answers with a fixed result
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []repositories.SpeechPrompt
	audio   *repositories.InlineAudio
	err     error
}

func (f *fakeGenerator) GenerateSpeech(ctx context.Context, prompt repositories.SpeechPrompt) (*repositories.InlineAudio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.audio, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func inlineAudio(raw []byte) *repositories.InlineAudio {
	return &repositories.InlineAudio{
		MIMEType: "audio/L16;codec=pcm;rate=24000",
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

func TestBuildInstruction(t *testing.T) {
	got := BuildInstruction("Good morning", "French")
	want := `Translate this text into French and speak it: "Good morning"`
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestRequestSpeech_DecodesAudio(t *testing.T) {
	generator := &fakeGenerator{audio: inlineAudio([]byte{0x00, 0x00, 0x00, 0x80, 0xFF, 0x7F})}
	service := NewSpeechService(generator, nil, zaptest.NewLogger(t))

	asset, err := service.RequestSpeech(context.Background(), "Hello", "Spanish", entities.VoiceKore)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if asset == nil {
		t.Fatal("Expected an asset")
	}
	if asset.SampleRate != 24000 || asset.ChannelCount() != 1 || asset.FrameCount() != 3 {
		t.Errorf("Unexpected asset shape: rate=%d channels=%d frames=%d",
			asset.SampleRate, asset.ChannelCount(), asset.FrameCount())
	}

	want := []float32{0, -1, float32(32767) / 32768}
	for i, v := range want {
		if asset.Channels[0][i] != v {
			t.Errorf("Sample %d: expected %v, got %v", i, v, asset.Channels[0][i])
		}
	}

	if generator.calls() != 1 {
		t.Fatalf("Expected exactly one request, got %d", generator.calls())
	}
	prompt := generator.prompts[0]
	if prompt.Voice != entities.VoiceKore {
		t.Errorf("Expected voice Kore, got %s", prompt.Voice)
	}
	if prompt.Instruction != `Translate this text into Spanish and speak it: "Hello"` {
		t.Errorf("Unexpected instruction %q", prompt.Instruction)
	}
}

func TestRequestSpeech_NoAudio(t *testing.T) {
	service := NewSpeechService(&fakeGenerator{}, nil, zaptest.NewLogger(t))

	asset, err := service.RequestSpeech(context.Background(), "Hello", "German", entities.VoiceFenrir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if asset != nil {
		t.Error("Expected no asset")
	}
}

func TestRequestSpeech_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		voice entities.Voice
	}{
		{name: "empty text", text: "", voice: entities.VoiceKore},
		{name: "blank text", text: "   \n", voice: entities.VoiceKore},
		{name: "unknown voice", text: "Hello", voice: entities.Voice("Nova")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := &fakeGenerator{}
			service := NewSpeechService(generator, nil, zaptest.NewLogger(t))

			_, err := service.RequestSpeech(context.Background(), tt.text, "Spanish", tt.voice)
			if !errors.Is(err, domain.ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
			if generator.calls() != 0 {
				t.Error("Invalid input must not reach the generator")
			}
		})
	}
}

func TestRequestSpeech_PropagatesTypedErrors(t *testing.T) {
	t.Run("generator error", func(t *testing.T) {
		want := &domain.RequestError{StatusCode: 503, Err: errors.New("unavailable")}
		service := NewSpeechService(&fakeGenerator{err: want}, nil, zaptest.NewLogger(t))

		_, err := service.RequestSpeech(context.Background(), "Hello", "Spanish", entities.VoiceKore)
		var requestErr *domain.RequestError
		if !errors.As(err, &requestErr) || requestErr.StatusCode != 503 {
			t.Errorf("Expected RequestError with status 503, got %v", err)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		generator := &fakeGenerator{audio: &repositories.InlineAudio{Data: "not*base64"}}
		service := NewSpeechService(generator, nil, zaptest.NewLogger(t))

		_, err := service.RequestSpeech(context.Background(), "Hello", "Spanish", entities.VoiceKore)
		var decodeErr *domain.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("Expected DecodeError, got %v", err)
		}
	})

	t.Run("odd byte count", func(t *testing.T) {
		generator := &fakeGenerator{audio: inlineAudio([]byte{0x01, 0x02, 0x03})}
		service := NewSpeechService(generator, nil, zaptest.NewLogger(t))

		_, err := service.RequestSpeech(context.Background(), "Hello", "Spanish", entities.VoiceKore)
		var framingErr *domain.FramingError
		if !errors.As(err, &framingErr) {
			t.Errorf("Expected FramingError, got %v", err)
		}
	})
}
