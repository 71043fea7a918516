package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/question"
)

func twoQuestions() []model.Question {
	return []model.Question{
		{Prompt: "first", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 1, Difficulty: model.DifficultyMedium},
		{Prompt: "second", Options: []string{"E", "F", "G", "H"}, CorrectIndex: 3, Difficulty: model.DifficultyHard},
	}
}

func fallbackSource(questions []model.Question) question.Source {
	return question.NewService(question.Config{}, zerolog.Nop(), question.WithFallback(questions))
}

type failingSource struct{}

func (failingSource) Acquire(context.Context) (*question.Acquisition, error) {
	return nil, errors.New("bank unavailable")
}

type fixedSource struct{ questions []model.Question }

func (s fixedSource) Acquire(context.Context) (*question.Acquisition, error) {
	return &question.Acquisition{Questions: s.questions, Origin: question.OriginRemote}, nil
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) Acquire(context.Context) (*question.Acquisition, error) {
	close(s.entered)
	<-s.release
	return &question.Acquisition{Questions: twoQuestions(), Origin: question.OriginFallback}, nil
}

type recorder struct{ kinds []EventKind }

func (r *recorder) listen(ev Event) { r.kinds = append(r.kinds, ev.Kind) }

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, src question.Source, opts ...Option) (*Controller, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	base := []Option{
		WithScheduler(sched),
		WithDelays(DefaultAdvanceDelay, DefaultSkipDelay),
		WithRewardURL("https://reward.test/secret"),
	}
	return NewController(src, append(base, opts...)...), sched
}

func mustStart(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	snap, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.State != StatePlaying {
		t.Fatalf("expected PLAYING after start, got %s (%s)", snap.State, snap.Error)
	}
	return snap
}

func TestStartInitializesRound(t *testing.T) {
	c, _ := newTestController(t, fallbackSource(twoQuestions()))

	snap := mustStart(t, c)

	if snap.CurrentIndex != 0 || snap.Revealed || snap.SelectedOption != nil {
		t.Errorf("expected fresh round marks, got index=%d revealed=%v selected=%v",
			snap.CurrentIndex, snap.Revealed, snap.SelectedOption)
	}
	if snap.QuestionCount != 2 || snap.Question == nil || snap.Question.Prompt != "first" {
		t.Errorf("unexpected round content: %+v", snap)
	}
	if snap.Origin != string(question.OriginFallback) {
		t.Errorf("expected fallback origin, got %q", snap.Origin)
	}
	if snap.RewardURL != "" {
		t.Error("reward must not be surfaced before the round is won")
	}
}

func TestEndToEndTwoQuestionRound(t *testing.T) {
	rec := &recorder{}
	c, sched := newTestController(t, fallbackSource(twoQuestions()), WithListener(rec.listen))

	mustStart(t, c)

	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	sched.Advance(DefaultAdvanceDelay)
	if snap := c.Snapshot(); snap.State != StatePlaying || snap.CurrentIndex != 1 {
		t.Fatalf("expected index 1 after delay, got %s/%d", snap.State, snap.CurrentIndex)
	}

	if _, err := c.Answer(3); err != nil {
		t.Fatalf("answer: %v", err)
	}
	sched.Advance(DefaultAdvanceDelay)

	snap := c.Snapshot()
	if snap.State != StateWon {
		t.Fatalf("expected WON, got %s", snap.State)
	}
	if snap.RewardURL != "https://reward.test/secret" {
		t.Errorf("expected reward URL in won state, got %q", snap.RewardURL)
	}
	if snap.Progress != 100 || snap.RoundID != "" {
		t.Errorf("expected discarded round at 100%%, got progress=%d round=%q", snap.Progress, snap.RoundID)
	}
	if rec.count(EventWon) != 1 {
		t.Errorf("expected exactly one won event, got %d", rec.count(EventWon))
	}
}

func TestCorrectAnswerAdvancesOnlyAfterDelay(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	snap, err := c.Answer(1)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !snap.Revealed || snap.Feedback != FeedbackAccepted || !snap.AdvancePending {
		t.Errorf("expected revealed accepted answer with pending advance, got %+v", snap)
	}

	sched.Advance(DefaultAdvanceDelay - time.Millisecond)
	if got := c.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("advanced before the delay elapsed: index %d", got)
	}

	sched.Advance(time.Millisecond)
	snap = c.Snapshot()
	if snap.CurrentIndex != 1 || snap.Revealed || snap.SelectedOption != nil || snap.Feedback != "" {
		t.Errorf("expected clean marks on the next question, got %+v", snap)
	}
}

func TestWrongAnswerThenRetry(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	snap, err := c.Answer(2)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !snap.Revealed || snap.SelectedOption == nil || *snap.SelectedOption != 2 {
		t.Fatalf("expected revealed selection 2, got %+v", snap)
	}
	if snap.Feedback != FeedbackDenied || snap.AdvancePending {
		t.Errorf("wrong answer must not schedule an advance: %+v", snap)
	}

	sched.Advance(time.Minute)
	if got := c.Snapshot().CurrentIndex; got != 0 {
		t.Fatalf("wrong answer advanced the round to %d", got)
	}

	snap, err = c.Retry()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snap.Revealed || snap.SelectedOption != nil || snap.CurrentIndex != 0 {
		t.Errorf("retry should clear marks only, got %+v", snap)
	}

	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer after retry: %v", err)
	}
	sched.Advance(DefaultAdvanceDelay)
	if got := c.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}
}

func TestAnswerWhileRevealedIsIgnored(t *testing.T) {
	c, _ := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	if _, err := c.Answer(0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	snap, err := c.Answer(1)
	if !errors.Is(err, ErrIntentIgnored) {
		t.Fatalf("expected ignored intent, got %v", err)
	}
	if *snap.SelectedOption != 0 || snap.AdvancePending {
		t.Errorf("second answer changed the round: %+v", snap)
	}
}

func TestAnswerOutOfRange(t *testing.T) {
	c, _ := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	for _, option := range []int{-1, 4} {
		snap, err := c.Answer(option)
		if !errors.Is(err, ErrOptionOutOfRange) {
			t.Errorf("option %d: expected out of range, got %v", option, err)
		}
		if snap.Revealed {
			t.Errorf("option %d: round must stay unrevealed", option)
		}
	}
}

func TestRetryIgnoredWhenNotApplicable(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	if _, err := c.Retry(); !errors.Is(err, ErrIntentIgnored) {
		t.Errorf("retry before answering: expected ignored, got %v", err)
	}

	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := c.Retry(); !errors.Is(err, ErrIntentIgnored) {
		t.Errorf("retry after correct answer: expected ignored, got %v", err)
	}

	sched.Advance(DefaultAdvanceDelay)
	if got := c.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("pending advance was lost: index %d", got)
	}
}

func TestSkipIsIdempotent(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	snap, err := c.Skip()
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if *snap.SelectedOption != 1 || snap.Feedback != FeedbackOverride {
		t.Errorf("skip should force the correct option, got %+v", snap)
	}
	if _, err := c.Skip(); !errors.Is(err, ErrIntentIgnored) {
		t.Fatalf("second skip: expected ignored, got %v", err)
	}
	if sched.Pending() != 1 {
		t.Fatalf("expected a single pending advance, got %d", sched.Pending())
	}

	sched.Advance(DefaultSkipDelay)
	if got := c.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("expected index 1 after skip delay, got %d", got)
	}
}

func TestSkipIgnoredAfterCorrectAnswer(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)

	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := c.Skip(); !errors.Is(err, ErrIntentIgnored) {
		t.Fatalf("expected skip to be ignored, got %v", err)
	}

	sched.Advance(DefaultSkipDelay)
	if got := c.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("skip shortened the pending delay: index %d", got)
	}
	sched.Advance(DefaultAdvanceDelay)
	if got := c.Snapshot().CurrentIndex; got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}
}

func TestSkipOverridesWrongAnswerAndWinsOnce(t *testing.T) {
	rec := &recorder{}
	c, sched := newTestController(t, fallbackSource(twoQuestions()[:1]), WithListener(rec.listen))
	mustStart(t, c)

	if _, err := c.Answer(0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := c.Skip(); err != nil {
		t.Fatalf("skip after wrong answer: %v", err)
	}

	sched.Advance(DefaultSkipDelay)
	sched.Advance(time.Minute)

	if got := c.Snapshot().State; got != StateWon {
		t.Fatalf("expected WON, got %s", got)
	}
	if rec.count(EventWon) != 1 {
		t.Errorf("expected exactly one won transition, got %d", rec.count(EventWon))
	}
}

func TestResetCancelsPendingAdvance(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	first := mustStart(t, c)

	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}
	snap, err := c.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if snap.State != StateIdle || snap.RoundID != "" {
		t.Fatalf("expected idle without round, got %+v", snap)
	}
	if sched.Pending() != 0 {
		t.Errorf("reset left %d pending tasks", sched.Pending())
	}

	second := mustStart(t, c)
	sched.Advance(time.Minute)

	snap = c.Snapshot()
	if snap.CurrentIndex != 0 || snap.Revealed {
		t.Errorf("stale advance leaked into the new round: %+v", snap)
	}
	if second.RoundID == first.RoundID {
		t.Error("expected a brand-new round after reset")
	}
}

func TestStaleTaskFiringIsDropped(t *testing.T) {
	c, _ := newTestController(t, fallbackSource(twoQuestions()))
	mustStart(t, c)
	if _, err := c.Answer(1); err != nil {
		t.Fatalf("answer: %v", err)
	}

	c.mu.Lock()
	seq, roundID := c.pendingSeq, c.round.ID
	c.mu.Unlock()

	if _, err := c.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	mustStart(t, c)

	// A timer that lost the race with Stop still calls advance.
	c.advance(seq, roundID, 0)

	if got := c.Snapshot().CurrentIndex; got != 0 {
		t.Errorf("stale firing advanced the new round to %d", got)
	}
}

func TestStartFailureLeavesIdleWithError(t *testing.T) {
	rec := &recorder{}
	c, _ := newTestController(t, failingSource{}, WithListener(rec.listen))

	snap, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("start should report failure through state, got %v", err)
	}
	if snap.State != StateIdle || snap.Error != ErrMsgInitFailed {
		t.Fatalf("expected idle with error, got %s/%q", snap.State, snap.Error)
	}
	if rec.count(EventLoading) != 1 || rec.count(EventFailed) != 1 {
		t.Errorf("expected loading then failed events, got %v", rec.kinds)
	}

	snap, err = c.Reset()
	if err != nil || snap.Error != "" || snap.State != StateIdle {
		t.Errorf("reset should clear the error, got %+v (%v)", snap, err)
	}
}

func TestInvalidRecordsFromSourceAreNotPresented(t *testing.T) {
	bad := []model.Question{{Prompt: "bad", Options: []string{"A", "B"}, CorrectIndex: 3, Difficulty: model.DifficultyHard}}
	c, _ := newTestController(t, fixedSource{questions: bad})

	snap, _ := c.Start(context.Background())
	if snap.State != StateIdle || snap.Question != nil {
		t.Fatalf("invalid round was presented: %+v", snap)
	}
}

func TestIntentsIgnoredWhileLoading(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	c, _ := newTestController(t, src)

	done := make(chan Snapshot)
	go func() {
		snap, _ := c.Start(context.Background())
		done <- snap
	}()
	<-src.entered

	if got := c.Snapshot().State; got != StateLoading {
		t.Fatalf("expected LOADING during acquisition, got %s", got)
	}
	if _, err := c.Start(context.Background()); !errors.Is(err, ErrIntentIgnored) {
		t.Errorf("second start: expected ignored, got %v", err)
	}
	if _, err := c.Answer(0); !errors.Is(err, ErrIntentIgnored) {
		t.Errorf("answer while loading: expected ignored, got %v", err)
	}
	if _, err := c.Reset(); !errors.Is(err, ErrIntentIgnored) {
		t.Errorf("reset while loading: expected ignored, got %v", err)
	}

	close(src.release)
	if snap := <-done; snap.State != StatePlaying {
		t.Errorf("expected PLAYING after acquisition, got %s", snap.State)
	}
}

func TestIntentsIgnoredInWrongState(t *testing.T) {
	c, _ := newTestController(t, fallbackSource(twoQuestions()))

	for name, intent := range map[string]func() (Snapshot, error){
		"answer": func() (Snapshot, error) { return c.Answer(0) },
		"retry":  c.Retry,
		"skip":   c.Skip,
	} {
		snap, err := intent()
		if !errors.Is(err, ErrIntentIgnored) {
			t.Errorf("%s while idle: expected ignored, got %v", name, err)
		}
		if snap.State != StateIdle {
			t.Errorf("%s while idle changed state to %s", name, snap.State)
		}
	}
}

func TestSnapshotRevealsCorrectIndexOnlyWhenAnswered(t *testing.T) {
	c, sched := newTestController(t, fallbackSource(twoQuestions()))
	snap := mustStart(t, c)

	if snap.Question.CorrectIndex != nil {
		t.Fatal("correct index leaked before answering")
	}
	for _, q := range snap.Questions {
		if q.CorrectIndex != nil {
			t.Fatal("correct index leaked in question list")
		}
	}

	snap, _ = c.Answer(0)
	if snap.Question.CorrectIndex == nil || *snap.Question.CorrectIndex != 1 {
		t.Errorf("expected revealed correct index 1, got %v", snap.Question.CorrectIndex)
	}

	c.Retry()
	c.Answer(1)
	sched.Advance(DefaultAdvanceDelay)
	snap = c.Snapshot()
	if snap.Questions[0].CorrectIndex == nil {
		t.Error("resolved question should show its answer")
	}
	if snap.Question.CorrectIndex != nil {
		t.Error("next question should hide its answer")
	}
}

func TestRoundIsIsolatedFromSource(t *testing.T) {
	questions := twoQuestions()
	c, _ := newTestController(t, fixedSource{questions: questions})
	mustStart(t, c)

	questions[0].Options[0] = "mutated"
	if got := c.Snapshot().Question.Options[0]; got != "A" {
		t.Errorf("round shares storage with the source: %q", got)
	}
}

func TestLastActiveTracksIntents(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestController(t, fallbackSource(twoQuestions()), WithClock(func() time.Time { return now }))

	now = now.Add(time.Hour)
	mustStart(t, c)
	if got := c.LastActive(); !got.Equal(now) {
		t.Errorf("expected last activity %v, got %v", now, got)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		index, total, want int
	}{
		{0, 10, 0},
		{1, 10, 10},
		{1, 3, 33},
		{2, 3, 67},
		{10, 10, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.index, tt.total); got != tt.want {
			t.Errorf("Progress(%d, %d) = %d, want %d", tt.index, tt.total, got, tt.want)
		}
	}
}
