package question

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/quizlock/internal/model"
)

// Parse errors. Both mean the response must be discarded as a whole.
var (
	ErrEmptyResponse     = errors.New("empty response")
	ErrMalformedResponse = errors.New("malformed response")
)

// wireQuestion mirrors the structured-output schema sent to the generator.
type wireQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correctAnswerIndex"`
	Difficulty         string   `json:"difficulty"`
}

// Parse strictly decodes a generator response into question records.
// Unknown fields, trailing data, an empty array, or any record violating the
// question invariant reject the whole response.
func Parse(raw string) ([]model.Question, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var wire []wireQuestion
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after array", ErrMalformedResponse)
	}
	if len(wire) == 0 {
		return nil, ErrEmptyResponse
	}

	questions := make([]model.Question, 0, len(wire))
	for i, w := range wire {
		if w.CorrectAnswerIndex == nil {
			return nil, fmt.Errorf("%w: question %d: missing correctAnswerIndex", ErrMalformedResponse, i)
		}
		options := make([]string, len(w.Options))
		for j, opt := range w.Options {
			options[j] = strings.TrimSpace(opt)
		}
		q := model.Question{
			Prompt:       strings.TrimSpace(w.Question),
			Options:      options,
			CorrectIndex: *w.CorrectAnswerIndex,
			Difficulty:   model.Difficulty(w.Difficulty),
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrMalformedResponse, i, err)
		}
		questions = append(questions, q)
	}

	return questions, nil
}
