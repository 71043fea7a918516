package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/game"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/response"
	"github.com/stemsi/quizlock/internal/service"
	"github.com/stemsi/quizlock/internal/validator"
)

// GameHandler exposes the game session intents over HTTP.
type GameHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(sessions *service.SessionService, log zerolog.Logger) *GameHandler {
	return &GameHandler{
		sessions: sessions,
		log:      log.With().Str("component", "game_handler").Logger(),
	}
}

// sessionResponse is a snapshot tagged with its session id.
type sessionResponse struct {
	SessionID string `json:"session_id"`
	game.Snapshot
}

// CreateSession godoc
// POST /api/v1/sessions
// Registers a new idle session.
func (h *GameHandler) CreateSession(c *gin.Context) {
	id, snap, err := h.sessions.Create()
	if err != nil {
		if errors.Is(err, service.ErrSessionLimit) {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrSessionLimit)
			return
		}
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg("Create session failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, sessionResponse{SessionID: id.String(), Snapshot: snap})
}

// GetSession godoc
// GET /api/v1/sessions/:id
func (h *GameHandler) GetSession(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, sessionResponse{SessionID: id.String(), Snapshot: ctrl.Snapshot()})
}

// DeleteSession godoc
// DELETE /api/v1/sessions/:id
func (h *GameHandler) DeleteSession(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(id); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session_id": id.String()})
}

// Start godoc
// POST /api/v1/sessions/:id/start
// Acquires questions and begins a round. Blocks until the round is ready or
// initialization failed; a failure is reported in the snapshot's error field.
func (h *GameHandler) Start(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	// A client hanging up must not abort an acquisition other viewers wait on.
	snap, err := ctrl.Start(context.WithoutCancel(c.Request.Context()))
	h.respond(c, id, snap, err)
}

// Answer godoc
// POST /api/v1/sessions/:id/answer
// Body: {"option": 0..3}
func (h *GameHandler) Answer(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	snap, err := ctrl.Answer(*req.Option)
	h.respond(c, id, snap, err)
}

// Retry godoc
// POST /api/v1/sessions/:id/retry
func (h *GameHandler) Retry(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := ctrl.Retry()
	h.respond(c, id, snap, err)
}

// Skip godoc
// POST /api/v1/sessions/:id/skip
// Operator-only override that resolves the current question.
func (h *GameHandler) Skip(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := ctrl.Skip()
	if err == nil {
		h.log.Info().Str("request_id", response.RequestID(c)).Str("session_id", id.String()).Int("index", snap.CurrentIndex).Msg("Operator skipped question")
	}
	h.respond(c, id, snap, err)
}

// Reset godoc
// POST /api/v1/sessions/:id/reset
func (h *GameHandler) Reset(c *gin.Context) {
	id, ctrl, ok := h.lookup(c)
	if !ok {
		return
	}
	snap, err := ctrl.Reset()
	h.respond(c, id, snap, err)
}

func (h *GameHandler) lookup(c *gin.Context) (uuid.UUID, *game.Controller, bool) {
	id, ok := parseSessionID(c)
	if !ok {
		return uuid.Nil, nil, false
	}
	ctrl, err := h.sessions.Get(id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return uuid.Nil, nil, false
	}
	return id, ctrl, true
}

func (h *GameHandler) respond(c *gin.Context, id uuid.UUID, snap game.Snapshot, err error) {
	data := sessionResponse{SessionID: id.String(), Snapshot: snap}
	status, code, ok := intentError(err)
	if !ok {
		h.log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("session_id", id.String()).Msg("Intent failed")
	}
	if code == "" {
		response.Success(c, http.StatusOK, data)
		return
	}
	response.FailWithData(c, status, code, data)
}

// intentError maps controller errors to HTTP status and error code. ok is
// false for errors the controller does not define.
func intentError(err error) (int, response.ErrCode, bool) {
	switch {
	case err == nil:
		return http.StatusOK, "", true
	case errors.Is(err, game.ErrIntentIgnored):
		return http.StatusConflict, response.ErrIntentIgnored, true
	case errors.Is(err, game.ErrOptionOutOfRange):
		return http.StatusBadRequest, response.ErrOptionOutOfRange, true
	default:
		return http.StatusInternalServerError, response.ErrInternal, false
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
