package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/linguavoice/server/adapters/wavfile"
	"github.com/satriahrh/linguavoice/server/domain"
	"github.com/satriahrh/linguavoice/server/domain/entities"
	"github.com/satriahrh/linguavoice/server/internal/auth"
	"github.com/satriahrh/linguavoice/server/internal/websocket"
	"github.com/satriahrh/linguavoice/server/usecase"
)

const (
	claimsKey  = "claims"
	sessionKey = "session"
)

// Dependencies are the collaborators the HTTP surface is built on
type Dependencies struct {
	Sessions *usecase.SessionManager
	Hub      *websocket.Hub
	Tokens   *auth.TokenIssuer
	// Metrics serves the Prometheus scrape endpoint; nil disables it
	Metrics  http.Handler
	Defaults usecase.Defaults
	Logger   *zap.Logger
}

type handlers struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	h := &handlers{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"service":  "linguavoice-server",
			"sessions": h.Sessions.Count(),
		})
	})

	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Catalogs
	v1.GET("/voices", h.listVoices)
	v1.GET("/languages", h.listLanguages)

	// Sessions
	v1.POST("/sessions", h.createSession)

	session := v1.Group("/sessions/:id", h.requireSession)
	session.DELETE("", h.closeSession)
	session.GET("/turns", h.listTurns)
	session.POST("/turns", h.submitTurn)
	session.GET("/turns/:turnID", h.getTurn)
	session.GET("/turns/:turnID/audio", h.downloadAudio)
	session.POST("/turns/:turnID/play", h.playTurn)
	session.POST("/playback/stop", h.stopPlayback)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth, h.requireSession)
}

func (h *handlers) listVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, VoicesResponse{
		Voices:  entities.VoiceOptions,
		Default: h.Defaults.Voice,
	})
}

func (h *handlers) listLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, LanguagesResponse{
		Languages: entities.Languages,
		Default:   h.Defaults.Language,
	})
}

func (h *handlers) createSession(c echo.Context) error {
	session := h.Sessions.Create()

	token, expiresAt, err := h.Tokens.GenerateSessionToken(session.ID())
	if err != nil {
		h.Logger.Error("Failed to generate session token",
			zap.String("sessionID", session.ID()),
			zap.Error(err))
		h.Sessions.Close(session.ID())
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	return c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID: session.ID(),
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// requireSession validates the bearer token and resolves the session it grants access to.
// On routes with an :id parameter the token must belong to that session.
func (h *handlers) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header",
			})
		}

		claims, err := h.Tokens.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("Request rejected: invalid token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired JWT token",
			})
		}

		if claims.Role != auth.RoleSession {
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "invalid_role",
				Message: "Only session tokens are accepted",
			})
		}

		if id := c.Param("id"); id != "" && id != claims.SessionID {
			return c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "session_mismatch",
				Message: "Token does not grant access to this session",
			})
		}

		session, err := h.Sessions.Get(claims.SessionID)
		if err != nil {
			return h.errorResponse(c, err)
		}

		c.Set(claimsKey, claims)
		c.Set(sessionKey, session)
		return next(c)
	}
}

// bearerToken reads the token from the Authorization header, falling back to the
// token query parameter for browser WebSocket clients that cannot set headers
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return c.QueryParam("token")
}

func sessionFrom(c echo.Context) *usecase.Session {
	return c.Get(sessionKey).(*usecase.Session)
}

func (h *handlers) closeSession(c echo.Context) error {
	if err := h.Sessions.Close(sessionFrom(c).ID()); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listTurns(c echo.Context) error {
	session := sessionFrom(c)

	turns, err := session.Turns()
	if err != nil {
		return h.errorResponse(c, err)
	}
	hasAudio, err := session.HasAudio()
	if err != nil {
		return h.errorResponse(c, err)
	}

	views := make([]TurnView, len(turns))
	for i, turn := range turns {
		views[i] = TurnView{ChatTurn: turn, HasAudio: hasAudio[turn.ID]}
	}

	return c.JSON(http.StatusOK, TurnsResponse{SessionID: session.ID(), Turns: views})
}

func (h *handlers) submitTurn(c echo.Context) error {
	var req SubmitTurnRequest
	if err := c.Bind(&req); err != nil {
		h.Logger.Warn("Failed to bind submit request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	user, assistant, err := sessionFrom(c).Submit(usecase.SubmitRequest{
		Text:     req.Text,
		Language: req.Language,
		Voice:    req.Voice,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, SubmitTurnResponse{User: user, Assistant: assistant})
}

func (h *handlers) getTurn(c echo.Context) error {
	session := sessionFrom(c)
	turnID := c.Param("turnID")

	turn, err := session.Turn(turnID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	asset, err := session.Asset(turnID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, TurnView{ChatTurn: turn, HasAudio: asset != nil})
}

func (h *handlers) downloadAudio(c echo.Context) error {
	turnID := c.Param("turnID")

	asset, err := sessionFrom(c).Asset(turnID)
	if err != nil {
		return h.errorResponse(c, err)
	}
	if asset == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "audio_not_found",
			Message: "Turn has no audio",
		})
	}

	data, err := wavfile.Bytes(asset)
	if err != nil {
		h.Logger.Error("Failed to encode audio", zap.String("turnID", turnID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to encode audio",
		})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+turnID+`.wav"`)
	return c.Blob(http.StatusOK, wavfile.ContentType, data)
}

func (h *handlers) playTurn(c echo.Context) error {
	session := sessionFrom(c)

	played, err := session.Play(c.Param("turnID"))
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, PlayResponse{
		Played: played,
		State:  string(session.PlaybackState()),
	})
}

func (h *handlers) stopPlayback(c echo.Context) error {
	sessionFrom(c).StopPlayback()
	return c.NoContent(http.StatusNoContent)
}

// websocketWithAuth attaches an authenticated WebSocket connection to its session
func (h *handlers) websocketWithAuth(c echo.Context) error {
	session := sessionFrom(c)

	h.Logger.Info("WebSocket connection authenticated", zap.String("sessionID", session.ID()))

	return websocket.HandleWebSocket(h.Hub, c, session, h.Logger)
}

// errorResponse translates domain errors into HTTP responses
func (h *handlers) errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, domain.ErrTurnNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "turn_not_found", Message: "Turn not found"})
	case errors.Is(err, domain.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "session_not_found", Message: "Session not found"})
	case errors.Is(err, domain.ErrSessionClosed):
		return c.JSON(http.StatusGone, ErrorResponse{Error: "session_closed", Message: "Session has ended"})
	default:
		h.Logger.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Unexpected error"})
	}
}
