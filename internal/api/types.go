package api

import (
	"time"

	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// CreateSessionResponse represents the response payload for session creation
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitTurnRequest represents the request payload for a new translation turn
type SubmitTurnRequest struct {
	Text     string `json:"text" validate:"required"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// SubmitTurnResponse carries the two turns created by a submission
type SubmitTurnResponse struct {
	User      entities.ChatTurn `json:"user"`
	Assistant entities.ChatTurn `json:"assistant"`
}

// TurnView is a turn as shown to the UI
type TurnView struct {
	entities.ChatTurn
	HasAudio bool `json:"has_audio"`
}

// TurnsResponse lists the turns of a session in display order
type TurnsResponse struct {
	SessionID string     `json:"session_id"`
	Turns     []TurnView `json:"turns"`
}

// PlayResponse reports whether a playback was started
type PlayResponse struct {
	Played bool   `json:"played"`
	State  string `json:"state"`
}

// VoicesResponse lists the voices offered to users
type VoicesResponse struct {
	Voices  []entities.VoiceOption `json:"voices"`
	Default entities.Voice         `json:"default"`
}

// LanguagesResponse lists the target languages offered to users
type LanguagesResponse struct {
	Languages []entities.Language `json:"languages"`
	Default   string              `json:"default"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
