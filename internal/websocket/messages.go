package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/linguavoice/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Messages sent by the UI
const (
	MessageTypeSubmit MessageType = "submit"
	MessageTypePlay   MessageType = "play"
	MessageTypeStop   MessageType = "stop"
	MessageTypePing   MessageType = "ping"
)

// Messages sent by the server
const (
	MessageTypeSubmitted     MessageType = "submitted"
	MessageTypeTurnUpdate    MessageType = "turn_update"
	MessageTypePlaybackStart MessageType = "playback_start"
	MessageTypePlaybackEnd   MessageType = "playback_end"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// Error codes carried by ErrorMessage
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeTurnNotFound   = "turn_not_found"
	ErrorCodeSessionClosed  = "session_closed"
	ErrorCodeInternal       = "internal_error"
)

// PCMEncoding names the layout of binary playback frames
const PCMEncoding = "pcm_s16le"

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// SubmitMessage asks for a new translated turn
type SubmitMessage struct {
	BaseMessage
	Text     string `json:"text" validate:"required"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// PlayMessage asks for playback of a turn's audio
type PlayMessage struct {
	BaseMessage
	TurnID string `json:"turn_id" validate:"required"`
}

// StopMessage ends the active playback
type StopMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// SubmittedMessage acknowledges a submission with the two turns it created
type SubmittedMessage struct {
	BaseMessage
	MessageRef string            `json:"message_ref,omitempty"`
	User       entities.ChatTurn `json:"user"`
	Assistant  entities.ChatTurn `json:"assistant"`
}

// TurnUpdateMessage carries the latest state of a turn
type TurnUpdateMessage struct {
	BaseMessage
	SessionID string            `json:"session_id"`
	Turn      entities.ChatTurn `json:"turn"`
	HasAudio  bool              `json:"has_audio"`
}

// PlaybackStartMessage announces the binary PCM frames that follow
type PlaybackStartMessage struct {
	BaseMessage
	SessionID  string `json:"session_id"`
	PlaybackID string `json:"playback_id"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Frames     int    `json:"frames"`
	Encoding   string `json:"encoding"`
}

// PlaybackEndMessage closes a playback announced by PlaybackStartMessage
type PlaybackEndMessage struct {
	BaseMessage
	SessionID  string `json:"session_id"`
	PlaybackID string `json:"playback_id"`
	Reason     string `json:"reason"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeSubmit:
		var msg SubmitMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid submit message: %w", err)
		}
		if err := v.validateSubmit(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypePlay:
		var msg PlayMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid play message: %w", err)
		}
		if msg.TurnID == "" {
			return nil, fmt.Errorf("turn_id is required")
		}
		return &msg, nil

	case MessageTypeStop:
		var msg StopMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid stop message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

// validateSubmit validates submit message fields
func (v *MessageValidator) validateSubmit(msg *SubmitMessage) error {
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if msg.Voice != "" {
		if _, ok := entities.ParseVoice(msg.Voice); !ok {
			return fmt.Errorf("voice must be one of: Kore, Puck, Zephyr, Charon, Fenrir")
		}
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateSubmittedMessage acknowledges a submission
func CreateSubmittedMessage(ref string, user, assistant entities.ChatTurn) *SubmittedMessage {
	return &SubmittedMessage{
		BaseMessage: newBase(MessageTypeSubmitted),
		MessageRef:  ref,
		User:        user,
		Assistant:   assistant,
	}
}

// CreateTurnUpdateMessage wraps a turn for delivery to the UI
func CreateTurnUpdateMessage(sessionID string, turn entities.ChatTurn, hasAudio bool) *TurnUpdateMessage {
	return &TurnUpdateMessage{
		BaseMessage: newBase(MessageTypeTurnUpdate),
		SessionID:   sessionID,
		Turn:        turn,
		HasAudio:    hasAudio,
	}
}
