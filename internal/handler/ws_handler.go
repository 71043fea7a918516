package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/game"
	"github.com/stemsi/quizlock/internal/response"
	"github.com/stemsi/quizlock/internal/service"
	ws "github.com/stemsi/quizlock/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session snapshots and accepts player intents over a
// WebSocket.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Pushes {"event":"state","data":snapshot} on every transition and accepts
// {"action":"start"|"answer"|"retry"|"reset"|"ping","option":n}.
func (h *WSHandler) SessionStream(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	ctrl, err := h.sessions.Get(id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	stream, unsubscribe, err := h.sessions.Subscribe(id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", id.String()).Logger()
	wsLog.Info().Msg("Viewer connected")

	replies := make(chan interface{}, 8)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		h.writeLoop(conn, stream, replies, readerDone, wsLog)
	}()

	h.readLoop(conn, ctrl, replies, writerDone, wsLog)
	close(readerDone)
	<-writerDone

	wsLog.Info().Msg("Viewer disconnected")
}

func (h *WSHandler) readLoop(conn *websocket.Conn, ctrl *game.Controller, replies chan<- interface{}, writerDone <-chan struct{}, wsLog zerolog.Logger) {
	reply := func(v interface{}) {
		select {
		case replies <- v:
		case <-writerDone:
		}
	}
	replyErr := func(err error) {
		if err == nil {
			return
		}
		_, code, ok := intentError(err)
		if !ok {
			wsLog.Error().Err(err).Msg("Intent failed")
		}
		reply(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)})
	}

	ws.PrepareReader(conn)
	for {
		var req ws.Request
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch req.Action {
		case ws.ActionStart:
			// Acquisition can take seconds; keep reading meanwhile.
			go func() {
				_, err := ctrl.Start(context.Background())
				replyErr(err)
			}()
		case ws.ActionAnswer:
			if req.Option == nil {
				reply(ws.ErrorResponse{
					Event: ws.EventError,
					Code:  string(response.ErrValidation),
					Error: "option is required",
				})
				continue
			}
			_, err := ctrl.Answer(*req.Option)
			replyErr(err)
		case ws.ActionRetry:
			_, err := ctrl.Retry()
			replyErr(err)
		case ws.ActionReset:
			_, err := ctrl.Reset()
			replyErr(err)
		case ws.ActionPing:
			reply(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(req.Action)).Msg("Unknown action")
			reply(ws.ErrorResponse{
				Event: ws.EventError,
				Code:  string(response.ErrUnknownAction),
				Error: "unknown action: " + string(req.Action),
			})
		}
	}
}

// writeLoop owns all writes to conn.
func (h *WSHandler) writeLoop(conn *websocket.Conn, stream <-chan game.Snapshot, replies <-chan interface{}, readerDone <-chan struct{}, wsLog zerolog.Logger) {
	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-readerDone:
			return
		case snap, ok := <-stream:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			}
			err = ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Data: snap})
		case v := <-replies:
			err = ws.WriteTyped(conn, v)
		case <-ticker.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				wsLog.Debug().Err(err).Msg("Write failed")
			}
			_ = conn.Close()
			return
		}
	}
}
