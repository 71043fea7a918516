package websocket

import "github.com/stemsi/quizlock/internal/game"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart  Action = "start"
	ActionAnswer Action = "answer"
	ActionRetry  Action = "retry"
	ActionReset  Action = "reset"
	ActionPing   Action = "ping"
)

// Request is a single player intent. Option is only read for answers.
type Request struct {
	Action Action `json:"action"`
	Option *int   `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState Event = "state"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// StateResponse carries the latest session snapshot.
type StateResponse struct {
	Event Event         `json:"event"`
	Data  game.Snapshot `json:"data"`
}

// ErrorResponse reports a rejected intent. Code mirrors the HTTP error codes.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
