package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/question"
)

// Default auto-advance delays after a correct answer and after a skip.
const (
	DefaultAdvanceDelay = 1500 * time.Millisecond
	DefaultSkipDelay    = 800 * time.Millisecond
)

// EventKind names the transition that produced an Event.
type EventKind string

const (
	EventLoading  EventKind = "loading"
	EventStarted  EventKind = "started"
	EventFailed   EventKind = "failed"
	EventAnswered EventKind = "answered"
	EventRetried  EventKind = "retried"
	EventSkipped  EventKind = "skipped"
	EventAdvanced EventKind = "advanced"
	EventWon      EventKind = "won"
	EventReset    EventKind = "reset"
)

// Event is delivered to listeners after every transition.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	// Acquisition is set on EventStarted and EventFailed.
	Acquisition *question.Acquisition
	At          time.Time
}

// Listener observes transitions. It is called with the controller lock held
// and must neither block nor call back into the controller.
type Listener func(Event)

// Option customizes a Controller.
type Option func(*Controller)

// WithScheduler replaces the timer used for deferred advances.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithDelays sets the auto-advance delays for correct answers and skips.
func WithDelays(advance, skip time.Duration) Option {
	return func(c *Controller) {
		c.advanceDelay = advance
		c.skipDelay = skip
	}
}

// WithRewardURL sets the link surfaced in the won state.
func WithRewardURL(url string) Option {
	return func(c *Controller) { c.rewardURL = url }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "game_controller").Logger() }
}

// WithListener registers a transition listener.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithClock overrides the wall clock used for activity tracking.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the state machine of one game session.
type Controller struct {
	source       question.Source
	sched        Scheduler
	advanceDelay time.Duration
	skipDelay    time.Duration
	rewardURL    string
	log          zerolog.Logger
	listeners    []Listener
	now          func() time.Time

	mu         sync.Mutex
	state      State
	lastError  string
	round      *Round
	pending    Task
	pendingSeq uint64
	wonCount   int
	lastActive time.Time
}

// NewController creates a controller in the idle state.
func NewController(source question.Source, opts ...Option) *Controller {
	c := &Controller{
		source:       source,
		sched:        SystemScheduler,
		advanceDelay: DefaultAdvanceDelay,
		skipDelay:    DefaultSkipDelay,
		log:          zerolog.Nop(),
		now:          time.Now,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastActive = c.now()
	return c
}

// Start moves Idle → Loading, acquires questions, then moves to Playing with
// a fresh round, or back to Idle with an error message. It blocks for the
// duration of the acquisition.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	c.touchLocked()
	if c.state != StateIdle {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrIntentIgnored
	}
	c.state = StateLoading
	c.lastError = ""
	c.emitLocked(EventLoading, nil)
	c.mu.Unlock()

	acq, err := c.source.Acquire(ctx)
	if err == nil && acq == nil {
		err = errors.New("source returned no acquisition")
	}
	if err == nil {
		err = model.ValidateAll(acq.Questions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	if err != nil {
		c.log.Error().Err(err).Msg("Round could not be initialized")
		c.state = StateIdle
		c.lastError = ErrMsgInitFailed
		c.emitLocked(EventFailed, acq)
		return c.snapshotLocked(), nil
	}

	questions := make([]model.Question, len(acq.Questions))
	for i, q := range acq.Questions {
		questions[i] = q
		questions[i].Options = append([]string(nil), q.Options...)
	}

	c.round = &Round{
		ID:        uuid.New(),
		Questions: questions,
		Origin:    acq.Origin,
	}
	c.state = StatePlaying
	c.log.Info().
		Str("round_id", c.round.ID.String()).
		Str("origin", string(acq.Origin)).
		Int("questions", len(questions)).
		Msg("Round started")
	c.emitLocked(EventStarted, acq)

	return c.snapshotLocked(), nil
}

// Answer records option for the current question and reveals it. A correct
// answer schedules the advance; a wrong one waits for Retry.
func (c *Controller) Answer(option int) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	if c.state != StatePlaying || c.round == nil || c.round.Revealed {
		return c.snapshotLocked(), ErrIntentIgnored
	}

	q := c.round.current()
	if option < 0 || option >= len(q.Options) {
		return c.snapshotLocked(), ErrOptionOutOfRange
	}

	c.round.SelectedOption = &option
	c.round.Revealed = true
	if option == q.CorrectIndex {
		c.round.Feedback = FeedbackAccepted
		c.scheduleAdvanceLocked(c.advanceDelay)
	} else {
		c.round.Feedback = FeedbackDenied
	}

	c.emitLocked(EventAnswered, nil)
	return c.snapshotLocked(), nil
}

// Retry clears the marks of a wrongly answered question. The index is kept.
func (c *Controller) Retry() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	if c.state != StatePlaying || c.round == nil || !c.round.Revealed || c.round.answeredCorrectly() {
		return c.snapshotLocked(), ErrIntentIgnored
	}

	c.round.clearMarks()
	c.emitLocked(EventRetried, nil)
	return c.snapshotLocked(), nil
}

// Skip force-resolves the current question and schedules a quicker advance.
// It is a no-op when the question is already correctly answered.
func (c *Controller) Skip() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	if c.state != StatePlaying || c.round == nil || c.round.answeredCorrectly() {
		return c.snapshotLocked(), ErrIntentIgnored
	}

	correct := c.round.current().CorrectIndex
	c.round.SelectedOption = &correct
	c.round.Revealed = true
	c.round.Feedback = FeedbackOverride
	c.scheduleAdvanceLocked(c.skipDelay)

	c.emitLocked(EventSkipped, nil)
	return c.snapshotLocked(), nil
}

// Reset cancels any pending advance, discards the round and clears the error.
// It is ignored while an acquisition is in flight.
func (c *Controller) Reset() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked()

	if c.state == StateLoading {
		return c.snapshotLocked(), ErrIntentIgnored
	}

	c.stopPendingLocked()
	c.round = nil
	c.wonCount = 0
	c.lastError = ""
	c.state = StateIdle

	c.emitLocked(EventReset, nil)
	return c.snapshotLocked(), nil
}

// Snapshot returns the current presentation view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Observe calls fn with the current snapshot while holding the controller
// lock, so no transition interleaves with it. fn must not block.
func (c *Controller) Observe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.snapshotLocked())
}

// LastActive returns the time of the most recent intent or transition.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) scheduleAdvanceLocked(delay time.Duration) {
	c.stopPendingLocked()
	c.pendingSeq++
	seq := c.pendingSeq
	roundID := c.round.ID
	index := c.round.CurrentIndex
	c.pending = c.sched.AfterFunc(delay, func() {
		c.advance(seq, roundID, index)
	})
}

func (c *Controller) stopPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// advance runs when a deferred advance fires. A firing that no longer matches
// the live round, index and pending task is dropped.
func (c *Controller) advance(seq uint64, roundID uuid.UUID, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || seq != c.pendingSeq || c.state != StatePlaying ||
		c.round == nil || c.round.ID != roundID || c.round.CurrentIndex != index {
		c.log.Debug().
			Str("round_id", roundID.String()).
			Int("index", index).
			Msg("Dropping stale advance")
		return
	}
	c.pending = nil
	c.touchLocked()

	if index+1 >= len(c.round.Questions) {
		c.wonCount = len(c.round.Questions)
		c.log.Info().Str("round_id", roundID.String()).Msg("Round won")
		c.round = nil
		c.state = StateWon
		c.emitLocked(EventWon, nil)
		return
	}

	c.round.CurrentIndex++
	c.round.clearMarks()
	c.emitLocked(EventAdvanced, nil)
}

func (c *Controller) touchLocked() {
	c.lastActive = c.now()
}

func (c *Controller) emitLocked(kind EventKind, acq *question.Acquisition) {
	if len(c.listeners) == 0 {
		return
	}
	ev := Event{
		Kind:        kind,
		Snapshot:    c.snapshotLocked(),
		Acquisition: acq,
		At:          c.now(),
	}
	for _, l := range c.listeners {
		l(ev)
	}
}
