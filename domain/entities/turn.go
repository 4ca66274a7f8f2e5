package entities

import "time"

// TurnRole represents who authored a turn
type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// TurnStatus is the coarse status shown next to a turn
type TurnStatus string

const (
	TurnStatusProcessing TurnStatus = "processing"
	TurnStatusComplete   TurnStatus = "complete"
	TurnStatusFailed     TurnStatus = "failed"
)

// TurnOutcome refines TurnStatus into the states of the assistant turn lifecycle.
// Every outcome other than TurnOutcomeProcessing is terminal.
type TurnOutcome string

const (
	TurnOutcomeProcessing        TurnOutcome = "processing"
	TurnOutcomeCompleteWithAudio TurnOutcome = "complete_with_audio"
	TurnOutcomeCompleteNoAudio   TurnOutcome = "complete_no_audio"
	TurnOutcomeFailed            TurnOutcome = "failed"
)

// Status maps an outcome to the status it is displayed with
func (o TurnOutcome) Status() TurnStatus {
	switch o {
	case TurnOutcomeCompleteWithAudio, TurnOutcomeCompleteNoAudio:
		return TurnStatusComplete
	case TurnOutcomeFailed:
		return TurnStatusFailed
	default:
		return TurnStatusProcessing
	}
}

// IsTerminal reports whether no further transition may leave this outcome
func (o TurnOutcome) IsTerminal() bool {
	return o != TurnOutcomeProcessing
}

// PlaceholderContent is the content of an assistant turn while its request is in flight
const PlaceholderContent = "..."

// ChatTurn is one message of a conversation, either the user's input or the assistant's reply.
// Outcome is only set on assistant turns.
type ChatTurn struct {
	ID        string      `json:"id"`
	Role      TurnRole    `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Status    TurnStatus  `json:"status"`
	Outcome   TurnOutcome `json:"outcome,omitempty"`
}

// NewUserTurn creates a user turn; user turns are complete as soon as they exist
func NewUserTurn(id, content string, now time.Time) *ChatTurn {
	return &ChatTurn{
		ID:        id,
		Role:      TurnRoleUser,
		Content:   content,
		CreatedAt: now,
		Status:    TurnStatusComplete,
	}
}

// NewAssistantPlaceholder creates the processing assistant turn paired with a user submission
func NewAssistantPlaceholder(id string, now time.Time) *ChatTurn {
	return &ChatTurn{
		ID:        id,
		Role:      TurnRoleAssistant,
		Content:   PlaceholderContent,
		CreatedAt: now,
		Status:    TurnStatusProcessing,
		Outcome:   TurnOutcomeProcessing,
	}
}

// IsProcessing reports whether the turn still waits for its speech response
func (t *ChatTurn) IsProcessing() bool {
	return t.Status == TurnStatusProcessing
}
