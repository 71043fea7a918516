package model

import (
	"time"

	"github.com/google/uuid"
)

// AcquisitionEvent records the outcome of one question acquisition for
// diagnostics. It is written to the audit log and never read back into play.
type AcquisitionEvent struct {
	ID            int64      `json:"id,omitempty"`
	SessionID     uuid.UUID  `json:"session_id"`
	RoundID       *uuid.UUID `json:"round_id,omitempty"`
	Origin        string     `json:"origin"`
	Reason        string     `json:"reason,omitempty"`
	QuestionCount int        `json:"question_count"`
	LatencyMS     int64      `json:"latency_ms"`
	Succeeded     bool       `json:"succeeded"`
	AcquiredAt    time.Time  `json:"acquired_at"`

	// Attempts counts failed inserts while the event sits on the queue.
	Attempts int `json:"attempts,omitempty"`
}
