package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/internal/playback"
	"github.com/satriahrh/linguavoice/server/internal/telemetry"
)

// Messages shown in resolved assistant turns
const (
	noAudioMessage     = "Sorry, I couldn't generate a translation at this time."
	failedMessage      = "An unexpected error occurred. Please try again."
	translatingMessage = "Translating your message to %s..."
)

const subscriberBuffer = 32

// SubmitRequest is one user submission. Empty Language and Voice fall back to the session defaults.
type SubmitRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
	Voice    string `json:"voice,omitempty"`
}

// Defaults are applied to submissions that leave language or voice unset
type Defaults struct {
	Language string
	Voice    entities.Voice
}

// TurnEvent is published whenever a turn is created or changes state
type TurnEvent struct {
	SessionID string            `json:"session_id"`
	Turn      entities.ChatTurn `json:"turn"`
	HasAudio  bool              `json:"has_audio"`
}

type completion struct {
	turnID   string
	language string
	asset    *entities.AudioAsset
	err      error
}

// Session is one chat conversation. A single owner goroutine holds the conversation;
// every read and write reaches it as a message, and speech workers report back the same way.
type Session struct {
	id           string
	conversation *entities.Conversation
	speech       repositories.SpeechTranslator
	player       *playback.Controller
	defaults     Defaults
	metrics      *telemetry.Metrics
	logger       *zap.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	commands    chan func()
	completions chan completion
	done        chan struct{}
	workers     sync.WaitGroup
	closeOnce   sync.Once

	subMu       sync.Mutex
	subscribers map[int]chan TurnEvent
	nextSub     int
}

// NewSession creates a session and starts its owner goroutine
func NewSession(
	id string,
	speech repositories.SpeechTranslator,
	output repositories.AudioOutput,
	defaults Defaults,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *Session {
	if defaults.Language == "" {
		defaults.Language = entities.DefaultLanguage
	}
	if !defaults.Voice.Valid() {
		defaults.Voice = entities.DefaultVoice
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With(zap.String("sessionID", id))

	s := &Session{
		id:           id,
		conversation: entities.NewConversation(id),
		speech:       speech,
		player:       playback.NewController(output, metrics, logger),
		defaults:     defaults,
		metrics:      metrics,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		commands:     make(chan func()),
		completions:  make(chan completion),
		done:         make(chan struct{}),
		subscribers:  make(map[int]chan TurnEvent),
	}

	go s.run()
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has ended
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.conversation.Release()
			return
		case fn := <-s.commands:
			fn()
		case c := <-s.completions:
			if s.ctx.Err() != nil {
				continue
			}
			s.resolve(c)
		}
	}
}

// do runs fn on the owner goroutine and waits for it
func (s *Session) do(fn func()) error {
	executed := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(executed) }:
	case <-s.ctx.Done():
		return domain.ErrSessionClosed
	}
	<-executed
	return nil
}

// Submit records the user turn and its processing assistant placeholder, then starts
// exactly one speech request for them. Both turns are returned before the request completes.
func (s *Session) Submit(req SubmitRequest) (user, assistant entities.ChatTurn, err error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return user, assistant, fmt.Errorf("text is required: %w", domain.ErrInvalidRequest)
	}

	voice := s.defaults.Voice
	if strings.TrimSpace(req.Voice) != "" {
		parsed, ok := entities.ParseVoice(req.Voice)
		if !ok {
			return user, assistant, fmt.Errorf("unknown voice %q: %w", req.Voice, domain.ErrInvalidRequest)
		}
		voice = parsed
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = s.defaults.Language
	} else if known, ok := entities.LookupLanguage(language); ok {
		language = known.Name
	}

	now := time.Now()
	userTurn := entities.NewUserTurn(uuid.New().String(), text, now)
	placeholder := entities.NewAssistantPlaceholder(uuid.New().String(), now)

	var appendErr error
	err = s.do(func() {
		if appendErr = s.conversation.AppendTurn(userTurn); appendErr != nil {
			return
		}
		if appendErr = s.conversation.AppendTurn(placeholder); appendErr != nil {
			return
		}
		user, assistant = *userTurn, *placeholder
		s.publish(user, false)
		s.publish(assistant, false)

		s.workers.Add(1)
		go s.request(assistant.ID, text, language, voice)
	})
	if err == nil {
		err = appendErr
	}
	if err != nil {
		return entities.ChatTurn{}, entities.ChatTurn{}, err
	}

	s.logger.Info("Turn submitted",
		zap.String("turnID", assistant.ID),
		zap.String("language", language),
		zap.String("voice", string(voice)))

	return user, assistant, nil
}

// request runs on its own goroutine; turnID is the placeholder it will resolve
func (s *Session) request(turnID, text, language string, voice entities.Voice) {
	defer s.workers.Done()

	asset, err := s.speech.RequestSpeech(s.ctx, text, language, voice)

	select {
	case s.completions <- completion{turnID: turnID, language: language, asset: asset, err: err}:
	case <-s.ctx.Done():
		s.logger.Debug("Dropping completion of closed session", zap.String("turnID", turnID))
	}
}

// resolve applies a completion on the owner goroutine
func (s *Session) resolve(c completion) {
	outcome, content := s.classify(c)

	var asset *entities.AudioAsset
	if outcome == entities.TurnOutcomeCompleteWithAudio {
		asset = c.asset
	}

	turn, err := s.conversation.Resolve(c.turnID, outcome, content, asset)
	if err != nil {
		s.logger.Warn("Failed to resolve turn", zap.String("turnID", c.turnID), zap.Error(err))
		return
	}

	s.metrics.RecordTurnTransition(s.ctx, string(outcome))
	s.publish(turn, asset != nil)
}

func (s *Session) classify(c completion) (entities.TurnOutcome, string) {
	if c.err == nil {
		if c.asset != nil {
			return entities.TurnOutcomeCompleteWithAudio, fmt.Sprintf(translatingMessage, c.language)
		}
		return entities.TurnOutcomeCompleteNoAudio, noAudioMessage
	}

	var configErr *domain.ConfigurationError
	if errors.As(c.err, &configErr) {
		s.logger.Warn("Speech backend is not configured",
			zap.String("turnID", c.turnID),
			zap.String("setting", configErr.Setting))
		return entities.TurnOutcomeCompleteNoAudio, noAudioMessage
	}

	s.logger.Error("Speech request failed", zap.String("turnID", c.turnID), zap.Error(c.err))
	return entities.TurnOutcomeFailed, failedMessage
}

// Subscribe returns a channel receiving every TurnEvent of this session.
// Events are dropped for subscribers that do not keep up; Turns resynchronizes them.
func (s *Session) Subscribe() (<-chan TurnEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan TurnEvent, subscriberBuffer)
	if s.ctx.Err() != nil {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (s *Session) publish(turn entities.ChatTurn, hasAudio bool) {
	event := TurnEvent{SessionID: s.id, Turn: turn, HasAudio: hasAudio}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			s.logger.Warn("Dropping turn event for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

// Turns returns every turn in display order
func (s *Session) Turns() ([]entities.ChatTurn, error) {
	var turns []entities.ChatTurn
	err := s.do(func() {
		turns = s.conversation.Turns()
	})
	return turns, err
}

// Turn returns a single turn
func (s *Session) Turn(turnID string) (entities.ChatTurn, error) {
	var (
		turn entities.ChatTurn
		ok   bool
	)
	if err := s.do(func() { turn, ok = s.conversation.Turn(turnID) }); err != nil {
		return turn, err
	}
	if !ok {
		return turn, domain.ErrTurnNotFound
	}
	return turn, nil
}

// Asset returns the audio of a turn; a turn without audio returns nil
func (s *Session) Asset(turnID string) (*entities.AudioAsset, error) {
	var (
		asset  *entities.AudioAsset
		exists bool
	)
	err := s.do(func() {
		_, exists = s.conversation.Turn(turnID)
		asset, _ = s.conversation.Asset(turnID)
	})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrTurnNotFound
	}
	return asset, nil
}

// HasAudio reports which turns carry audio
func (s *Session) HasAudio() (map[string]bool, error) {
	out := make(map[string]bool)
	err := s.do(func() {
		for _, turn := range s.conversation.Turns() {
			if _, ok := s.conversation.Asset(turn.ID); ok {
				out[turn.ID] = true
			}
		}
	})
	return out, err
}

// Play starts playback of a turn's audio. Turns without audio are ignored and report false.
func (s *Session) Play(turnID string) (bool, error) {
	asset, err := s.Asset(turnID)
	if err != nil {
		return false, err
	}
	if asset == nil {
		return false, nil
	}
	if err := s.player.Play(asset); err != nil {
		return false, err
	}
	return true, nil
}

// StopPlayback ends the active playback, if any
func (s *Session) StopPlayback() {
	s.player.Stop()
}

// PlaybackState reports the state of the session's playback controller
func (s *Session) PlaybackState() playback.State {
	return s.player.State()
}

// IdleSince reports how long the conversation has gone without a change
func (s *Session) IdleSince(now time.Time) (time.Duration, error) {
	var idle time.Duration
	err := s.do(func() {
		idle = s.conversation.IdleSince(now)
	})
	return idle, err
}

// Close ends the session: playback stops, in-flight requests are cancelled and their
// results dropped, and every asset is released.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.player.Close()
		s.cancel()
		<-s.done
		s.workers.Wait()

		s.subMu.Lock()
		for id, ch := range s.subscribers {
			delete(s.subscribers, id)
			close(ch)
		}
		s.subMu.Unlock()

		s.logger.Info("Session closed")
	})
}
