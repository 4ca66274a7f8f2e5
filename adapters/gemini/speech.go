package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
)

const (
	defaultAPIBaseURL = "https://generativelanguage.googleapis.com"
	defaultAPIVersion = "v1beta"
	defaultModel      = "gemini-2.5-flash-preview-tts"
	defaultTimeout    = 60 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for diagnostics
	maxErrorBody = 2048
)

// SpeechConfig holds configuration for the SpeechClient adapter.
// APIKey is checked per request so a missing key surfaces as a ConfigurationError
// instead of preventing startup.
type SpeechConfig struct {
	APIKey     string        // Gemini API key
	APIBaseURL string        // Optional: defaults to the public Gemini endpoint
	APIVersion string        // Optional: defaults to v1beta
	Model      string        // Optional: defaults to gemini-2.5-flash-preview-tts
	Timeout    time.Duration // Optional: per request transport timeout, defaults to 60s
	HTTPClient *http.Client  // Optional: overrides the transport entirely
}

// SpeechClient implements SpeechGenerator against the Gemini generateContent REST endpoint.
// The request body is built from genai types; the response is decoded into local wire
// types so the inline audio stays base64 text until the caller decodes it.
type SpeechClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Ensure SpeechClient implements the SpeechGenerator interface
var _ repositories.SpeechGenerator = (*SpeechClient)(nil)

// ValidateSpeechConfig validates the optional settings of a SpeechConfig
func ValidateSpeechConfig(config SpeechConfig) error {
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	if config.APIBaseURL != "" && !strings.HasPrefix(config.APIBaseURL, "http") {
		return fmt.Errorf("api base url must be an http(s) url, got %q", config.APIBaseURL)
	}
	return nil
}

// NewSpeechClient creates a new Gemini speech client
func NewSpeechClient(config SpeechConfig, logger *zap.Logger) (*SpeechClient, error) {
	if err := ValidateSpeechConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.APIBaseURL
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", baseURL))
	}

	version := config.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	if config.APIKey == "" {
		logger.Warn("Gemini API key is not configured; speech requests will be answered without audio")
	}

	return &SpeechClient{
		apiKey:     config.APIKey,
		endpoint:   fmt.Sprintf("%s/%s/models/%s:generateContent", strings.TrimRight(baseURL, "/"), version, model),
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type generateContentRequest struct {
	Contents         []*genai.Content        `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []*candidate `json:"candidates"`
}

type candidate struct {
	Content *content `json:"content"`
}

type content struct {
	Parts []*part `json:"parts"`
}

type part struct {
	InlineData *inlineData `json:"inlineData"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type errorResponse struct {
	Error *genai.APIError `json:"error"`
}

// newSpeechRequest builds the request body asking for audio in the given prebuilt voice
func newSpeechRequest(prompt repositories.SpeechPrompt) *generateContentRequest {
	return &generateContentRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText(prompt.Instruction, genai.RoleUser),
		},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []genai.Modality{genai.ModalityAudio},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
						VoiceName: string(prompt.Voice),
					},
				},
			},
		},
	}
}

// GenerateSpeech sends one generateContent request and extracts the first inline audio payload
func (s *SpeechClient) GenerateSpeech(ctx context.Context, prompt repositories.SpeechPrompt) (*repositories.InlineAudio, error) {
	if s.apiKey == "" {
		return nil, &domain.ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is not set"}
	}

	body, err := json.Marshal(newSpeechRequest(prompt))
	if err != nil {
		return nil, &domain.RequestError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.RequestError{Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", s.apiKey)

	s.logger.Debug("Sending speech request",
		zap.String("model", s.model),
		zap.String("voice", string(prompt.Voice)))

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.RequestError{Err: fmt.Errorf("failed to execute HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.RequestError{StatusCode: resp.StatusCode, Err: readAPIError(resp)}
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &domain.RequestError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	audio := decoded.firstInlineAudio()
	if audio == nil {
		s.logger.Info("Speech response carried no inline audio", zap.String("model", s.model))
		return nil, nil
	}

	s.logger.Debug("Received inline audio",
		zap.String("mimeType", audio.MIMEType),
		zap.Int("encodedBytes", len(audio.Data)))

	return audio, nil
}

// firstInlineAudio follows candidates[0].content.parts[0].inlineData.data
func (r *generateContentResponse) firstInlineAudio() *repositories.InlineAudio {
	if len(r.Candidates) == 0 || r.Candidates[0] == nil {
		return nil
	}
	c := r.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0] == nil {
		return nil
	}
	data := c.Parts[0].InlineData
	if data == nil || data.Data == "" {
		return nil
	}
	return &repositories.InlineAudio{MIMEType: data.MIMEType, Data: data.Data}
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil {
		return *apiErr.Error
	}

	if len(body) == 0 {
		return errors.New(resp.Status)
	}
	return genai.APIError{Code: resp.StatusCode, Status: resp.Status, Message: string(body)}
}
