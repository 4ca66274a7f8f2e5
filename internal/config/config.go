// Package config loads the server configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// Speech backends
const (
	BackendGemini = "gemini"
	BackendMock   = "mock"
)

const developmentSecret = "linguavoice-development-secret"

// Config is the root configuration of the server
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	SpeechBackend   string
	MockSpeechDelay time.Duration
	Gemini          GeminiConfig

	JWTSecret string
	TokenTTL  time.Duration

	// DevelopmentSecret is set when JWTSecret fell back to the built-in development value
	DevelopmentSecret bool

	SessionIdleTimeout     time.Duration
	SessionCleanupInterval time.Duration
	PlaybackChunk          time.Duration

	DefaultLanguage string
	DefaultVoice    entities.Voice
}

// GeminiConfig holds the remote speech model settings
type GeminiConfig struct {
	APIKey     string
	APIBaseURL string
	APIVersion string
	Model      string
	Timeout    time.Duration
}

// Load reads envFile (when it exists) into the process environment, then resolves every
// setting from the environment and defaults. Variables already set take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("SPEECH_BACKEND", BackendGemini)
	v.SetDefault("MOCK_SPEECH_DELAY", "300ms")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_API_BASE_URL", "")
	v.SetDefault("GEMINI_API_VERSION", "")
	v.SetDefault("GEMINI_TTS_MODEL", "")
	v.SetDefault("GEMINI_TIMEOUT", "60s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_CLEANUP_INTERVAL", "5m")
	v.SetDefault("PLAYBACK_CHUNK", "100ms")
	v.SetDefault("DEFAULT_LANGUAGE", entities.DefaultLanguage)
	v.SetDefault("DEFAULT_VOICE", string(entities.DefaultVoice))

	v.AutomaticEnv()

	cfg := &Config{
		Port:            v.GetString("PORT"),
		Environment:     strings.ToLower(v.GetString("APP_ENV")),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		SpeechBackend:   strings.ToLower(v.GetString("SPEECH_BACKEND")),
		MockSpeechDelay: v.GetDuration("MOCK_SPEECH_DELAY"),
		Gemini: GeminiConfig{
			APIKey:     v.GetString("GEMINI_API_KEY"),
			APIBaseURL: v.GetString("GEMINI_API_BASE_URL"),
			APIVersion: v.GetString("GEMINI_API_VERSION"),
			Model:      v.GetString("GEMINI_TTS_MODEL"),
			Timeout:    v.GetDuration("GEMINI_TIMEOUT"),
		},
		JWTSecret:              v.GetString("JWT_SECRET"),
		TokenTTL:               v.GetDuration("TOKEN_TTL"),
		SessionIdleTimeout:     v.GetDuration("SESSION_IDLE_TIMEOUT"),
		SessionCleanupInterval: v.GetDuration("SESSION_CLEANUP_INTERVAL"),
		PlaybackChunk:          v.GetDuration("PLAYBACK_CHUNK"),
		DefaultLanguage:        v.GetString("DEFAULT_LANGUAGE"),
	}

	voice, ok := entities.ParseVoice(v.GetString("DEFAULT_VOICE"))
	if !ok {
		return nil, &domain.ConfigurationError{Setting: "DEFAULT_VOICE", Reason: fmt.Sprintf("%q is not a supported voice", v.GetString("DEFAULT_VOICE"))}
	}
	cfg.DefaultVoice = voice

	if lang, ok := entities.LookupLanguage(cfg.DefaultLanguage); ok {
		cfg.DefaultLanguage = lang.Name
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = developmentSecret
		cfg.DevelopmentSecret = true
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would prevent the server from starting.
// A missing Gemini API key is not one of them: speech requests report it instead.
func Validate(cfg *Config) error {
	switch cfg.SpeechBackend {
	case BackendGemini, BackendMock:
	default:
		return &domain.ConfigurationError{Setting: "SPEECH_BACKEND", Reason: fmt.Sprintf("must be %q or %q, got %q", BackendGemini, BackendMock, cfg.SpeechBackend)}
	}

	if cfg.JWTSecret == "" {
		return &domain.ConfigurationError{Setting: "JWT_SECRET", Reason: "is required outside development"}
	}

	durations := []struct {
		setting string
		value   time.Duration
	}{
		{"GEMINI_TIMEOUT", cfg.Gemini.Timeout},
		{"TOKEN_TTL", cfg.TokenTTL},
		{"SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout},
		{"SESSION_CLEANUP_INTERVAL", cfg.SessionCleanupInterval},
		{"PLAYBACK_CHUNK", cfg.PlaybackChunk},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return &domain.ConfigurationError{Setting: d.setting, Reason: "must be a positive duration"}
		}
	}

	if cfg.MockSpeechDelay < 0 {
		return &domain.ConfigurationError{Setting: "MOCK_SPEECH_DELAY", Reason: "must not be negative"}
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		return &domain.ConfigurationError{Setting: "DEFAULT_LANGUAGE", Reason: "must not be empty"}
	}
	return nil
}

// IsDevelopment reports whether APP_ENV selects development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// NewLogger builds the process logger: development output in development mode, JSON otherwise
func NewLogger(cfg *Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, &domain.ConfigurationError{Setting: "LOG_LEVEL", Reason: err.Error()}
		}
		zc.Level = level
	}

	return zc.Build()
}
