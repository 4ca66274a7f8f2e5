package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/usecase"
)

// stubTranslator answers every request with the same asset
type stubTranslator struct {
	asset *entities.AudioAsset
}

func (s stubTranslator) RequestSpeech(ctx context.Context, text, language string, voice entities.Voice) (*entities.AudioAsset, error) {
	return s.asset, nil
}

type testServer struct {
	hub     *Hub
	manager *usecase.SessionManager
	session *usecase.Session
	url     string
}

func setupTestServer(t *testing.T, asset *entities.AudioAsset) *testServer {
	t.Helper()
	logger := zap.NewNop()

	hub := NewHub(20*time.Millisecond, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	manager := usecase.NewSessionManager(stubTranslator{asset: asset}, hub, usecase.Defaults{}, nil, logger)
	session := manager.Create()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, session, logger)
	})
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		manager.CloseAll()
		cancel()
		server.Close()
	})

	return &testServer{
		hub:     hub,
		manager: manager,
		session: session,
		url:     "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}
}

// readUntil returns the first text message matching want, counting the binary frames seen before it
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType, match func(map[string]interface{}) bool) (map[string]interface{}, int) {
	t.Helper()
	binaryFrames := 0
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed waiting for %s: %v", want, err)
		}
		if messageType == websocket.BinaryMessage {
			binaryFrames++
			continue
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("Server sent invalid JSON: %v", err)
		}
		if msg["type"] == string(want) && (match == nil || match(msg)) {
			return msg, binaryFrames
		}
	}
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(sessionID) != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.ClientCount(sessionID); got != want {
		t.Fatalf("Expected %d clients, got %d", want, got)
	}
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub(0, zap.NewNop())

	if hub.sessions == nil {
		t.Error("Hub sessions map not initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels not initialized")
	}
	if hub.chunk != defaultChunkDuration {
		t.Errorf("Expected default chunk %s, got %s", defaultChunkDuration, hub.chunk)
	}
	if delivered := hub.Broadcast("nobody", WriteData{Type: websocket.TextMessage}); delivered != 0 {
		t.Errorf("Expected no deliveries without clients, got %d", delivered)
	}
}

func TestHub_SubmitOverWebSocket(t *testing.T) {
	asset := &entities.AudioAsset{SampleRate: 24000, Channels: [][]float32{make([]float32, 480)}}
	ts := setupTestServer(t, asset)
	conn := dial(t, ts.url)

	writeJSON(t, conn, map[string]interface{}{
		"type":       "submit",
		"message_id": "m-1",
		"text":       "Hello",
		"language":   "French",
		"voice":      "Puck",
	})

	// the acknowledgement and the resolved turn may arrive in either order
	var submitted, resolved map[string]interface{}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for submitted == nil || resolved == nil {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		switch msg["type"] {
		case string(MessageTypeSubmitted):
			submitted = msg
		case string(MessageTypeTurnUpdate):
			turn := msg["turn"].(map[string]interface{})
			if turn["role"] == "assistant" && turn["status"] != "processing" {
				resolved = msg
			}
		}
	}

	if submitted["message_ref"] != "m-1" {
		t.Errorf("Expected message_ref m-1, got %v", submitted["message_ref"])
	}
	assistant := submitted["assistant"].(map[string]interface{})
	if assistant["status"] != "processing" || assistant["content"] != "..." {
		t.Errorf("Unexpected placeholder: %v", assistant)
	}

	turn := resolved["turn"].(map[string]interface{})
	if turn["id"] != assistant["id"] {
		t.Errorf("Resolved turn %v does not match placeholder %v", turn["id"], assistant["id"])
	}
	if turn["content"] != "Translating your message to French..." {
		t.Errorf("Unexpected content %v", turn["content"])
	}
	if resolved["has_audio"] != true {
		t.Error("Expected resolved turn to carry audio")
	}
}

// submitAndWait submits through the session and waits for the assistant turn to resolve
func submitAndWait(t *testing.T, session *usecase.Session) string {
	t.Helper()
	events, cancel := session.Subscribe()
	defer cancel()

	_, assistant, err := session.Submit(usecase.SubmitRequest{Text: "Hello"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Turn.ID == assistant.ID && event.Turn.Outcome.IsTerminal() {
				return assistant.ID
			}
		case <-timeout:
			t.Fatal("Turn was not resolved")
		}
	}
}

func TestHub_PlaybackStreamsPCM(t *testing.T) {
	// 100ms of audio at 20ms per chunk
	asset := &entities.AudioAsset{SampleRate: 24000, Channels: [][]float32{make([]float32, 2400)}}
	ts := setupTestServer(t, asset)
	conn := dial(t, ts.url)
	waitForClients(t, ts.hub, ts.session.ID(), 1)

	assistantID := submitAndWait(t, ts.session)

	writeJSON(t, conn, map[string]interface{}{"type": "play", "turn_id": assistantID})

	start, _ := readUntil(t, conn, MessageTypePlaybackStart, nil)
	if start["sample_rate"] != float64(24000) || start["channels"] != float64(1) || start["frames"] != float64(2400) {
		t.Errorf("Unexpected playback_start: %v", start)
	}
	if start["encoding"] != PCMEncoding {
		t.Errorf("Expected encoding %s, got %v", PCMEncoding, start["encoding"])
	}

	end, frames := readUntil(t, conn, MessageTypePlaybackEnd, nil)
	if end["reason"] != "completed" {
		t.Errorf("Expected completed playback, got %v", end["reason"])
	}
	if end["playback_id"] != start["playback_id"] {
		t.Error("playback_end must reference the started playback")
	}
	if frames != 5 {
		t.Errorf("Expected 5 binary chunks, got %d", frames)
	}
}

func TestHub_StopEndsPlayback(t *testing.T) {
	// 10s of audio so the playback is still running when stopped
	asset := &entities.AudioAsset{SampleRate: 24000, Channels: [][]float32{make([]float32, 240000)}}
	ts := setupTestServer(t, asset)
	conn := dial(t, ts.url)
	waitForClients(t, ts.hub, ts.session.ID(), 1)

	assistantID := submitAndWait(t, ts.session)

	writeJSON(t, conn, map[string]interface{}{"type": "play", "turn_id": assistantID})
	readUntil(t, conn, MessageTypePlaybackStart, nil)

	writeJSON(t, conn, map[string]interface{}{"type": "stop"})
	end, _ := readUntil(t, conn, MessageTypePlaybackEnd, nil)
	if end["reason"] != "stopped" {
		t.Errorf("Expected stopped playback, got %v", end["reason"])
	}
}

func TestHub_PingPong(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := dial(t, ts.url)

	writeJSON(t, conn, map[string]interface{}{"type": "ping", "data": "hello"})

	pong, _ := readUntil(t, conn, MessageTypePong, nil)
	if pong["data"] != "hello" {
		t.Errorf("Expected pong data hello, got %v", pong["data"])
	}
}

func TestHub_InvalidMessages(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := dial(t, ts.url)

	tests := []struct {
		name     string
		message  string
		wantCode string
	}{
		{name: "not json", message: "hello", wantCode: ErrorCodeInvalidMessage},
		{name: "unknown type", message: `{"type":"dance"}`, wantCode: ErrorCodeInvalidMessage},
		{name: "empty text", message: `{"type":"submit","text":"  "}`, wantCode: ErrorCodeInvalidMessage},
		{name: "unknown turn", message: `{"type":"play","turn_id":"missing"}`, wantCode: ErrorCodeTurnNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.message)); err != nil {
				t.Fatalf("Failed to write: %v", err)
			}
			msg, _ := readUntil(t, conn, MessageTypeError, nil)
			if msg["error_code"] != tt.wantCode {
				t.Errorf("Expected error code %s, got %v", tt.wantCode, msg["error_code"])
			}
		})
	}
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	ts := setupTestServer(t, nil)

	assistantID := submitAndWait(t, ts.session)

	conn := dial(t, ts.url)
	update, _ := readUntil(t, conn, MessageTypeTurnUpdate, func(msg map[string]interface{}) bool {
		return msg["turn"].(map[string]interface{})["id"] == assistantID
	})
	turn := update["turn"].(map[string]interface{})
	if turn["outcome"] != string(entities.TurnOutcomeCompleteNoAudio) {
		t.Errorf("Expected resolved turn in snapshot, got %v", turn)
	}
}

func TestHub_SessionCloseDisconnectsClients(t *testing.T) {
	ts := setupTestServer(t, nil)
	conn := dial(t, ts.url)
	waitForClients(t, ts.hub, ts.session.ID(), 1)

	if err := ts.manager.Close(ts.session.ID()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	waitForClients(t, ts.hub, ts.session.ID(), 0)
}
