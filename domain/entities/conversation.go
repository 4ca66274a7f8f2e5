package entities

import (
	"fmt"
	"time"

	"github.com/satriahrh/linguavoice/server/domain"
)

// Conversation owns the ordered turns of one chat session and the audio produced for them.
// Turns are append-only: insertion order is display order and turns are never removed.
// A Conversation is not safe for concurrent use; a single owner goroutine drives it.
type Conversation struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
	turns        []*ChatTurn
	index        map[string]int
	assets       map[string]*AudioAsset
}

// NewConversation creates an empty conversation
func NewConversation(id string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		turns:        make([]*ChatTurn, 0),
		index:        make(map[string]int),
		assets:       make(map[string]*AudioAsset),
	}
}

// AppendTurn adds a turn at the end of the conversation
func (c *Conversation) AppendTurn(turn *ChatTurn) error {
	if turn.ID == "" {
		return fmt.Errorf("turn id is required")
	}
	if _, exists := c.index[turn.ID]; exists {
		return fmt.Errorf("turn %s already exists", turn.ID)
	}

	c.index[turn.ID] = len(c.turns)
	c.turns = append(c.turns, turn)
	c.touch()
	return nil
}

// Turn returns a copy of the turn with the given id
func (c *Conversation) Turn(id string) (ChatTurn, bool) {
	i, ok := c.index[id]
	if !ok {
		return ChatTurn{}, false
	}
	return *c.turns[i], true
}

// Turns returns copies of all turns in insertion order
func (c *Conversation) Turns() []ChatTurn {
	out := make([]ChatTurn, len(c.turns))
	for i, turn := range c.turns {
		out[i] = *turn
	}
	return out
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Asset returns the audio recorded against a turn, if any
func (c *Conversation) Asset(turnID string) (*AudioAsset, bool) {
	asset, ok := c.assets[turnID]
	return asset, ok
}

// Resolve moves a processing assistant turn into a terminal outcome.
// The asset is recorded only for TurnOutcomeCompleteWithAudio, which requires one.
func (c *Conversation) Resolve(turnID string, outcome TurnOutcome, content string, asset *AudioAsset) (ChatTurn, error) {
	i, ok := c.index[turnID]
	if !ok {
		return ChatTurn{}, fmt.Errorf("resolve %s: %w", turnID, domain.ErrTurnNotFound)
	}

	turn := c.turns[i]
	if turn.Role != TurnRoleAssistant || !turn.IsProcessing() {
		return ChatTurn{}, fmt.Errorf("resolve %s: %w", turnID, domain.ErrTurnNotPending)
	}
	if !outcome.IsTerminal() {
		return ChatTurn{}, fmt.Errorf("resolve %s: outcome %q is not terminal", turnID, outcome)
	}

	switch {
	case outcome == TurnOutcomeCompleteWithAudio && asset == nil:
		return ChatTurn{}, fmt.Errorf("resolve %s: outcome %q requires audio", turnID, outcome)
	case outcome != TurnOutcomeCompleteWithAudio && asset != nil:
		return ChatTurn{}, fmt.Errorf("resolve %s: outcome %q cannot carry audio", turnID, outcome)
	}

	turn.Content = content
	turn.Outcome = outcome
	turn.Status = outcome.Status()
	if asset != nil {
		c.assets[turnID] = asset
	}
	c.touch()

	return *turn, nil
}

// IdleSince reports how long the conversation has gone without a change
func (c *Conversation) IdleSince(now time.Time) time.Duration {
	return now.Sub(c.LastActiveAt)
}

// Release drops every recorded asset; used when the session ends
func (c *Conversation) Release() {
	c.assets = make(map[string]*AudioAsset)
}

func (c *Conversation) touch() {
	c.LastActiveAt = time.Now()
}
