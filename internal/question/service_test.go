package question

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
)

type fakeGenerator struct {
	calls int
	raw   string
	err   error
	block bool
}

func (g *fakeGenerator) Generate(ctx context.Context, count int) (string, error) {
	g.calls++
	if g.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.raw, g.err
}

func twoQuestionBank() []model.Question {
	return []model.Question{
		{Prompt: "first", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 1, Difficulty: model.DifficultyMedium},
		{Prompt: "second", Options: []string{"E", "F", "G", "H"}, CorrectIndex: 3, Difficulty: model.DifficultyHard},
	}
}

func TestAcquireWithoutCredentialSkipsNetwork(t *testing.T) {
	gen := &fakeGenerator{raw: validPayload}
	svc := NewService(Config{}, zerolog.Nop(), WithGenerator(gen), WithFallback(twoQuestionBank()))

	acq, err := svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator call, got %d", gen.calls)
	}
	if acq.Origin != OriginFallback || acq.Reason != ReasonNoCredential {
		t.Errorf("expected fallback/no_credential, got %s/%s", acq.Origin, acq.Reason)
	}
	if len(acq.Questions) != 2 || acq.Questions[0].Prompt != "first" {
		t.Errorf("expected exactly the fallback list, got %+v", acq.Questions)
	}
}

func TestAcquireRemoteSuccess(t *testing.T) {
	gen := &fakeGenerator{raw: validPayload}
	svc := NewService(Config{APIKey: "key"}, zerolog.Nop(), WithGenerator(gen))

	acq, err := svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one remote attempt, got %d", gen.calls)
	}
	if acq.Origin != OriginRemote || acq.Reason != "" {
		t.Errorf("expected remote origin, got %s/%s", acq.Origin, acq.Reason)
	}
	if len(acq.Questions) != 2 {
		t.Errorf("expected 2 remote questions, got %d", len(acq.Questions))
	}
}

func TestAcquireFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		gen    *fakeGenerator
		reason Reason
	}{
		{"transport error", &fakeGenerator{err: errors.New("connection refused")}, ReasonRemoteError},
		{"empty text", &fakeGenerator{raw: ""}, ReasonEmptyResponse},
		{"empty array", &fakeGenerator{raw: "[]"}, ReasonEmptyResponse},
		{"malformed", &fakeGenerator{raw: `[{"question":"Q","options":["a"],"correctAnswerIndex":0,"difficulty":"Erfitt"}]`}, ReasonMalformedResponse},
		{"garbage", &fakeGenerator{raw: "<html>502</html>"}, ReasonMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{APIKey: "key"}, zerolog.Nop(), WithGenerator(tt.gen), WithFallback(twoQuestionBank()))

			acq, err := svc.Acquire(context.Background())
			if err != nil {
				t.Fatalf("acquisition must not fail, got %v", err)
			}
			if tt.gen.calls != 1 {
				t.Errorf("expected exactly one attempt, got %d", tt.gen.calls)
			}
			if acq.Origin != OriginFallback || acq.Reason != tt.reason {
				t.Errorf("expected fallback/%s, got %s/%s", tt.reason, acq.Origin, acq.Reason)
			}
			if len(acq.Questions) != 2 {
				t.Errorf("expected fallback list, got %d questions", len(acq.Questions))
			}
		})
	}
}

func TestAcquireTimeoutFallsBack(t *testing.T) {
	gen := &fakeGenerator{block: true}
	svc := NewService(Config{APIKey: "key", Timeout: 10 * time.Millisecond}, zerolog.Nop(), WithGenerator(gen))

	acq, err := svc.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acq.Reason != ReasonRemoteError {
		t.Errorf("expected remote_error after timeout, got %s", acq.Reason)
	}
}

func TestAcquireInvalidFallbackFails(t *testing.T) {
	bad := []model.Question{{Prompt: "broken", Options: []string{"a"}, CorrectIndex: 0, Difficulty: model.DifficultyHard}}
	svc := NewService(Config{}, zerolog.Nop(), WithFallback(bad))

	if _, err := svc.Acquire(context.Background()); !errors.Is(err, model.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question error, got %v", err)
	}
}

func TestAcquireCallsAreIndependent(t *testing.T) {
	svc := NewService(Config{}, zerolog.Nop())

	first, _ := svc.Acquire(context.Background())
	first.Questions[0].Prompt = "changed"

	second, _ := svc.Acquire(context.Background())
	if second.Questions[0].Prompt == "changed" {
		t.Fatal("acquisitions share question storage")
	}
}
