package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/repositories"
	"github.com/satriahrh/linguavoice/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Outbound queue per client; holds a few seconds of paced audio
	sendBuffer = 256

	defaultChunkDuration = 100 * time.Millisecond
)

// ErrHubStopped is returned when a client connects after the hub stopped running
var ErrHubStopped = errors.New("websocket hub stopped")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub maintains the clients attached to each chat session and fans out
// turn updates and playback audio to them.
type Hub struct {
	// Registered clients, grouped by session id.
	sessions map[string]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}

	// Mutex for thread-safe access to sessions map
	mu sync.RWMutex

	validator *MessageValidator
	chunk     time.Duration
	logger    *zap.Logger
}

// Ensure Hub provides per-session audio outputs
var _ repositories.AudioOutputFactory = (*Hub)(nil)

// NewHub creates a new WebSocket hub. chunk is the length of audio carried by one binary frame.
func NewHub(chunk time.Duration, logger *zap.Logger) *Hub {
	if chunk <= 0 {
		chunk = defaultChunkDuration
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		validator:  NewMessageValidator(),
		chunk:      chunk,
		logger:     logger,
	}
}

// Run starts the hub's main loop; it disconnects every client when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.sessions {
				for client := range clients {
					client.closeSend()
				}
			}
			h.sessions = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			clients, ok := h.sessions[client.sessionID]
			if !ok {
				clients = make(map[*Client]struct{})
				h.sessions[client.sessionID] = clients
			}
			clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.sessions[client.sessionID]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.sessions, client.sessionID)
				}
			}
			h.mu.Unlock()
			client.closeSend()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))
		}
	}
}

// Broadcast queues a message for every client attached to the session and returns how many accepted it
func (h *Hub) Broadcast(sessionID string, message WriteData) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.sessions[sessionID] {
		if client.enqueue(message) {
			delivered++
		} else {
			h.logger.Warn("Dropping message for slow client", zap.String("sessionID", sessionID))
		}
	}
	return delivered
}

func (h *Hub) broadcastJSON(sessionID string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	h.Broadcast(sessionID, WriteData{Type: websocket.TextMessage, Payload: payload})
}

// ClientCount returns the number of clients attached to a session
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// OutputFor returns the audio output streaming to the clients of a session
func (h *Hub) OutputFor(sessionID string) repositories.AudioOutput {
	return &sessionOutput{hub: h, sessionID: sessionID}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Chat session this client is attached to
	session   *usecase.Session
	sessionID string

	logger *zap.Logger

	// guards send against writes after close
	mu     sync.Mutex
	closed bool
}

// HandleWebSocket upgrades an authenticated request and attaches the connection to session
func HandleWebSocket(hub *Hub, c echo.Context, session *usecase.Session, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBuffer),
		session:   session,
		sessionID: session.ID(),
		logger:    logger.With(zap.String("sessionID", session.ID())),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return ErrHubStopped
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func (c *Client) enqueue(message WriteData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	if !c.enqueue(WriteData{Type: websocket.TextMessage, Payload: payload}) {
		c.logger.Warn("Dropping message for closed or slow client")
	}
}

// readPump pumps messages from the websocket connection to the session.
func (c *Client) readPump() {
	events, cancel := c.session.Subscribe()
	defer func() {
		cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.sendSnapshot()
	go c.forwardEvents(events)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, "Only text messages are accepted", ""))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendSnapshot replays every turn so a (re)connecting UI starts in sync
func (c *Client) sendSnapshot() {
	turns, err := c.session.Turns()
	if err != nil {
		c.sendJSON(CreateErrorMessage(ErrorCodeSessionClosed, "Session has ended", err.Error()))
		return
	}
	hasAudio, err := c.session.HasAudio()
	if err != nil {
		return
	}
	for _, turn := range turns {
		c.sendJSON(CreateTurnUpdateMessage(c.sessionID, turn, hasAudio[turn.ID]))
	}
}

// forwardEvents relays turn events until the subscription ends
func (c *Client) forwardEvents(events <-chan usecase.TurnEvent) {
	for event := range events {
		c.sendJSON(CreateTurnUpdateMessage(event.SessionID, event.Turn, event.HasAudio))
	}
	// the session ended or the client left; either way the connection is done
	c.conn.Close()
}

// processMessage processes incoming messages from the UI
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendJSON(CreateErrorMessage(ErrorCodeInvalidMessage, "Invalid message", err.Error()))
		return
	}

	switch m := msg.(type) {
	case *SubmitMessage:
		c.handleSubmit(m)
	case *PlayMessage:
		c.handlePlay(m)
	case *StopMessage:
		c.session.StopPlayback()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

func (c *Client) handleSubmit(msg *SubmitMessage) {
	user, assistant, err := c.session.Submit(usecase.SubmitRequest{
		Text:     msg.Text,
		Language: msg.Language,
		Voice:    msg.Voice,
	})
	if err != nil {
		c.sendError(err)
		return
	}
	c.sendJSON(CreateSubmittedMessage(msg.MessageID, user, assistant))
}

func (c *Client) handlePlay(msg *PlayMessage) {
	played, err := c.session.Play(msg.TurnID)
	if err != nil {
		c.sendError(err)
		return
	}
	if !played {
		c.logger.Debug("Turn has no audio to play", zap.String("turnID", msg.TurnID))
	}
}

func (c *Client) sendError(err error) {
	code := ErrorCodeInternal
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = ErrorCodeInvalidRequest
	case errors.Is(err, domain.ErrTurnNotFound):
		code = ErrorCodeTurnNotFound
	case errors.Is(err, domain.ErrSessionClosed):
		code = ErrorCodeSessionClosed
	default:
		c.logger.Error("Request failed", zap.Error(err))
	}
	c.sendJSON(CreateErrorMessage(code, "Request failed", err.Error()))
}
