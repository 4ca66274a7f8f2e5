package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/pcm"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
)

// SpeechService turns user text into a decoded translation audio asset
type SpeechService struct {
	generator repositories.SpeechGenerator
	metrics   *telemetry.Metrics
	logger    *zap.Logger
}

// Ensure SpeechService implements the SpeechTranslator interface
var _ repositories.SpeechTranslator = (*SpeechService)(nil)

// NewSpeechService creates a new speech service
func NewSpeechService(generator repositories.SpeechGenerator, metrics *telemetry.Metrics, logger *zap.Logger) *SpeechService {
	return &SpeechService{
		generator: generator,
		metrics:   metrics,
		logger:    logger,
	}
}

// BuildInstruction renders the single instruction sent to the speech model
func BuildInstruction(text, targetLanguage string) string {
	return fmt.Sprintf("Translate this text into %s and speak it: \"%s\"", targetLanguage, text)
}

// RequestSpeech sends exactly one request and decodes the returned audio.
// It returns nil, nil when the model answered without audio.
func (s *SpeechService) RequestSpeech(ctx context.Context, text, targetLanguage string, voice entities.Voice) (*entities.AudioAsset, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", domain.ErrInvalidRequest)
	}
	if !voice.Valid() {
		return nil, fmt.Errorf("unknown voice %q: %w", voice, domain.ErrInvalidRequest)
	}

	prompt := repositories.SpeechPrompt{
		Instruction: BuildInstruction(text, targetLanguage),
		Voice:       voice,
	}

	started := time.Now()
	audio, err := s.generator.GenerateSpeech(ctx, prompt)
	elapsed := time.Since(started)

	if err != nil {
		var configErr *domain.ConfigurationError
		if errors.As(err, &configErr) {
			s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeConfig, elapsed)
		} else {
			s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeError, elapsed)
		}
		return nil, err
	}

	if audio == nil {
		s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeNoAudio, elapsed)
		return nil, nil
	}

	data, err := pcm.Decode(audio.Data)
	if err != nil {
		s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeError, elapsed)
		return nil, err
	}

	asset, err := pcm.Frame(data, pcm.SpeechSampleRate, pcm.SpeechChannels)
	if err != nil {
		s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeError, elapsed)
		return nil, err
	}

	s.metrics.RecordSpeechRequest(ctx, telemetry.SpeechOutcomeAudio, elapsed)
	s.logger.Info("Speech audio decoded",
		zap.String("language", targetLanguage),
		zap.String("voice", string(voice)),
		zap.Int("frames", asset.FrameCount()),
		zap.Duration("elapsed", elapsed))

	return asset, nil
}
