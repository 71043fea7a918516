package model

import (
	"errors"
	"fmt"

	"github.com/stemsi/quizlock/internal/validator"
)

// OptionCount is the number of alternatives every question carries.
const OptionCount = 4

// Difficulty is a display-only label attached to each question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Auðvelt"
	DifficultyMedium Difficulty = "Miðlungs"
	DifficultyHard   Difficulty = "Erfitt"
)

// Question is a single multiple-choice record in a round.
type Question struct {
	Prompt       string     `json:"prompt" validate:"required"`
	Options      []string   `json:"options" validate:"len=4,dive,required"`
	CorrectIndex int        `json:"correct_index" validate:"min=0,max=3"`
	Difficulty   Difficulty `json:"difficulty" validate:"oneof=Auðvelt Miðlungs Erfitt"`
}

// ErrInvalidQuestion is returned when a record breaks the question invariant.
var ErrInvalidQuestion = errors.New("invalid question")

// Validate checks q against its validate tags.
func (q Question) Validate() error {
	if err := validator.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	return nil
}

// ValidateAll checks every record and reports the first offending index.
func ValidateAll(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: empty question list", ErrInvalidQuestion)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

// AnswerRequest is the payload for answering the current question.
type AnswerRequest struct {
	Option *int `json:"option" binding:"required,min=0,max=3"`
}

// OperatorTokenRequest is the payload for exchanging the operator passphrase
// for a signed token.
type OperatorTokenRequest struct {
	Passphrase string `json:"passphrase" binding:"required,min=8,max=128"`
}
