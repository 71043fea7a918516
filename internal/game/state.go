package game

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/question"
)

// State enumerates the application states of a game session.
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
	StatePlaying State = "PLAYING"
	StateWon     State = "WON"
	// StateGameOver is declared for forward compatibility. Wrong answers are
	// always retriable, so no transition enters it.
	StateGameOver State = "GAME_OVER"
)

// Terminal feedback lines shown under the current question.
const (
	FeedbackAccepted = "PASSWORD_FRAGMENT_ACCEPTED"
	FeedbackDenied   = "ACCESS_DENIED // SECURITY ALERT"
	FeedbackOverride = "ROOT_OVERRIDE_ENABLED"
)

// ErrMsgInitFailed is the generic message shown on the idle screen when a
// round could not be started.
const ErrMsgInitFailed = "failed to initialize game sequence"

var (
	// ErrIntentIgnored means the intent has no transition in the current state.
	ErrIntentIgnored = errors.New("intent ignored in current state")
	// ErrOptionOutOfRange means an answer referenced a non-existent option.
	ErrOptionOutOfRange = errors.New("option index out of range")
)

// Round is one play-through of an acquired question list.
type Round struct {
	ID             uuid.UUID
	Questions      []model.Question
	CurrentIndex   int
	Revealed       bool
	SelectedOption *int
	Feedback       string
	Origin         question.Origin
}

func (r *Round) current() model.Question {
	return r.Questions[r.CurrentIndex]
}

// answeredCorrectly reports whether the current question is resolved and
// waiting for its advance.
func (r *Round) answeredCorrectly() bool {
	return r.Revealed && r.SelectedOption != nil && *r.SelectedOption == r.current().CorrectIndex
}

func (r *Round) clearMarks() {
	r.Revealed = false
	r.SelectedOption = nil
	r.Feedback = ""
}

// Progress returns round(100 * index / total), or 0 for an empty round.
func Progress(index, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(index) / float64(total)))
}
