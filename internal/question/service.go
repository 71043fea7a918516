package question

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
)

// Origin tells where an acquired question list came from.
type Origin string

const (
	OriginRemote   Origin = "remote"
	OriginFallback Origin = "fallback"
)

// Reason explains why the fallback bank was served. Empty for remote results.
type Reason string

const (
	ReasonNoCredential      Reason = "no_credential"
	ReasonRemoteError       Reason = "remote_error"
	ReasonEmptyResponse     Reason = "empty_response"
	ReasonMalformedResponse Reason = "malformed_response"
)

// Acquisition is the outcome of one acquire call.
type Acquisition struct {
	Questions []model.Question
	Origin    Origin
	Reason    Reason
	Latency   time.Duration
}

// Source resolves the ordered question list for a new round.
type Source interface {
	Acquire(ctx context.Context) (*Acquisition, error)
}

// Config holds the values injected into the Service at construction.
type Config struct {
	// APIKey is the remote credential. Empty disables the generator entirely.
	APIKey  string
	Count   int
	Timeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithGenerator sets the remote generator.
func WithGenerator(g Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithFallback replaces the built-in fallback bank.
func WithFallback(questions []model.Question) Option {
	return func(s *Service) { s.fallback = cloneQuestions(questions) }
}

// Service acquires questions from the generator, degrading to the fallback
// bank on any failure. It keeps no state between calls.
type Service struct {
	cfg       Config
	generator Generator
	fallback  []model.Question
	log       zerolog.Logger
}

// NewService creates a question Service.
func NewService(cfg Config, log zerolog.Logger, opts ...Option) *Service {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	s := &Service{
		cfg:      cfg,
		fallback: Fallback(),
		log:      log.With().Str("component", "question_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire makes at most one remote attempt. Remote failures are logged and
// answered with the fallback bank; an error is returned only when the
// fallback bank itself is unusable.
func (s *Service) Acquire(ctx context.Context) (*Acquisition, error) {
	started := time.Now()

	if s.cfg.APIKey == "" || s.generator == nil {
		s.log.Warn().Msg("No API key configured, using fallback questions")
		return s.fromFallback(ReasonNoCredential, started)
	}

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	raw, err := s.generator.Generate(callCtx, s.cfg.Count)
	if err != nil {
		s.log.Error().Err(err).Msg("Error fetching questions from generator")
		return s.fromFallback(ReasonRemoteError, started)
	}

	questions, err := Parse(raw)
	if err != nil {
		reason := ReasonMalformedResponse
		if errors.Is(err, ErrEmptyResponse) {
			reason = ReasonEmptyResponse
		}
		s.log.Warn().Err(err).Str("reason", string(reason)).Msg("Discarding generator response")
		return s.fromFallback(reason, started)
	}

	latency := time.Since(started)
	s.log.Info().
		Int("count", len(questions)).
		Dur("latency", latency).
		Msg("Questions acquired from generator")

	return &Acquisition{
		Questions: questions,
		Origin:    OriginRemote,
		Latency:   latency,
	}, nil
}

func (s *Service) fromFallback(reason Reason, started time.Time) (*Acquisition, error) {
	questions := cloneQuestions(s.fallback)
	if err := model.ValidateAll(questions); err != nil {
		return nil, fmt.Errorf("fallback question bank: %w", err)
	}
	return &Acquisition{
		Questions: questions,
		Origin:    OriginFallback,
		Reason:    reason,
		Latency:   time.Since(started),
	}, nil
}
