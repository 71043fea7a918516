package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/event"
	"github.com/stemsi/quizlock/internal/game"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/question"
)

// Session registry errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("session limit reached")
)

const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultMaxSessions   = 1000
	DefaultSweepInterval = time.Minute

	outboxSize     = 256
	publishTimeout = 5 * time.Second
)

// SessionConfig holds the tunables of the session registry.
type SessionConfig struct {
	TTL           time.Duration
	MaxSessions   int
	SweepInterval time.Duration
	AdvanceDelay  time.Duration
	SkipDelay     time.Duration
	RewardURL     string
}

// SessionOption customizes a SessionService.
type SessionOption func(*SessionService)

// WithPublisher mirrors every transition to p.
func WithPublisher(p event.Publisher) SessionOption {
	return func(s *SessionService) { s.publisher = p }
}

// WithAuditSink records every acquisition outcome in sink.
func WithAuditSink(sink event.AuditSink) SessionOption {
	return func(s *SessionService) { s.audit = sink }
}

// WithSessionScheduler sets the scheduler handed to every controller.
func WithSessionScheduler(sched game.Scheduler) SessionOption {
	return func(s *SessionService) { s.sched = sched }
}

// WithSessionClock overrides the wall clock used for expiry.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

type session struct {
	id        uuid.UUID
	ctrl      *game.Controller
	createdAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan game.Snapshot
	nextSub int
	closed  bool
}

type outboxItem struct {
	msg   *event.Message
	audit *model.AcquisitionEvent
}

// SessionService owns every live game session and relays their transitions
// to subscribers, the event publisher and the audit log.
type SessionService struct {
	source    question.Source
	cfg       SessionConfig
	publisher event.Publisher
	audit     event.AuditSink
	sched     game.Scheduler
	now       func() time.Time
	log       zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	outbox chan outboxItem
}

// NewSessionService creates a SessionService backed by source.
func NewSessionService(source question.Source, cfg SessionConfig, log zerolog.Logger, opts ...SessionOption) *SessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = game.DefaultAdvanceDelay
	}
	if cfg.SkipDelay <= 0 {
		cfg.SkipDelay = game.DefaultSkipDelay
	}

	s := &SessionService{
		source:    source,
		cfg:       cfg,
		publisher: event.NopPublisher{},
		audit:     event.NopAuditSink{},
		sched:     game.SystemScheduler,
		now:       time.Now,
		log:       log.With().Str("component", "session_service").Logger(),
		sessions:  make(map[uuid.UUID]*session),
		outbox:    make(chan outboxItem, outboxSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new idle session.
func (s *SessionService) Create() (uuid.UUID, game.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.MaxSessions {
		return uuid.Nil, game.Snapshot{}, ErrSessionLimit
	}

	sess := &session{
		id:        uuid.New(),
		createdAt: s.now(),
		subs:      make(map[int]chan game.Snapshot),
	}
	sess.ctrl = game.NewController(s.source,
		game.WithScheduler(s.sched),
		game.WithDelays(s.cfg.AdvanceDelay, s.cfg.SkipDelay),
		game.WithRewardURL(s.cfg.RewardURL),
		game.WithLogger(s.log.With().Str("session_id", sess.id.String()).Logger()),
		game.WithClock(s.now),
		game.WithListener(func(ev game.Event) { s.onEvent(sess, ev) }),
	)
	s.sessions[sess.id] = sess

	s.log.Info().Str("session_id", sess.id.String()).Int("active", len(s.sessions)).Msg("Session created")
	return sess.id, sess.ctrl.Snapshot(), nil
}

// Get returns the controller of a live session.
func (s *SessionService) Get(id uuid.UUID) (*game.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.ctrl, nil
}

// Delete drops a session, cancelling its pending advance and closing its
// subscriber streams.
func (s *SessionService) Delete(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.teardown(sess)
	s.log.Info().Str("session_id", id.String()).Msg("Session deleted")
	return nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Subscribe streams the session's snapshots, starting with the current one.
// Slow consumers skip intermediate snapshots; only the latest is kept. The
// channel is closed when the session goes away or cancel is called.
func (s *SessionService) Subscribe(id uuid.UUID) (<-chan game.Snapshot, func(), error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan game.Snapshot, 1)
	var key int
	registered := false
	sess.ctrl.Observe(func(snap game.Snapshot) {
		sess.subMu.Lock()
		defer sess.subMu.Unlock()
		if sess.closed {
			return
		}
		key = sess.nextSub
		sess.nextSub++
		sess.subs[key] = ch
		ch <- snap
		registered = true
	})
	if !registered {
		return nil, nil, ErrSessionNotFound
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sess.subMu.Lock()
			defer sess.subMu.Unlock()
			if _, ok := sess.subs[key]; ok {
				delete(sess.subs, key)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

// Start runs the event dispatcher and the expiry sweep until ctx is done,
// then flushes queued events and stops every session.
func (s *SessionService) Start(ctx context.Context) {
	s.log.Info().
		Dur("ttl", s.cfg.TTL).
		Dur("sweep_interval", s.cfg.SweepInterval).
		Msg("SessionService started")

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Shutdown requested. Stopping sessions and draining events...")
			s.stopAll()
			s.drain()
			return
		case item := <-s.outbox:
			s.dispatch(ctx, item)
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts sessions idle for longer than the TTL. Sessions with an
// acquisition in flight are left for the next pass.
func (s *SessionService) sweep() int {
	cutoff := s.now().Add(-s.cfg.TTL)

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.ctrl.LastActive().After(cutoff) {
			continue
		}
		if sess.ctrl.Snapshot().State == game.StateLoading {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, sess)
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		s.teardown(sess)
	}
	if len(expired) > 0 {
		s.log.Info().Int("evicted", len(expired)).Int("active", remaining).Msg("Expired idle sessions")
	}
	return len(expired)
}

func (s *SessionService) stopAll() {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		delete(s.sessions, id)
		all = append(all, sess)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.teardown(sess)
	}
}

func (s *SessionService) teardown(sess *session) {
	// Reset is ignored while loading; the round it would start is then
	// unreachable because the session is no longer registered.
	_, _ = sess.ctrl.Reset()

	sess.subMu.Lock()
	defer sess.subMu.Unlock()
	sess.closed = true
	for key, ch := range sess.subs {
		delete(sess.subs, key)
		close(ch)
	}
}

// onEvent runs under the controller lock and must not block.
func (s *SessionService) onEvent(sess *session, ev game.Event) {
	sess.subMu.Lock()
	if !sess.closed {
		for _, ch := range sess.subs {
			offerLatest(ch, ev.Snapshot)
		}
	}
	sess.subMu.Unlock()

	item := outboxItem{msg: &event.Message{
		SessionID: sess.id.String(),
		Kind:      string(ev.Kind),
		State:     ev.Snapshot.State,
		Snapshot:  ev.Snapshot,
		At:        ev.At,
	}}
	if ev.Kind == game.EventStarted || ev.Kind == game.EventFailed {
		item.audit = acquisitionRecord(sess.id, ev)
	}

	select {
	case s.outbox <- item:
	default:
		s.log.Warn().
			Str("session_id", sess.id.String()).
			Str("kind", string(ev.Kind)).
			Msg("Event outbox full, dropping event")
	}
}

func acquisitionRecord(sessionID uuid.UUID, ev game.Event) *model.AcquisitionEvent {
	rec := &model.AcquisitionEvent{
		SessionID:  sessionID,
		Succeeded:  ev.Kind == game.EventStarted,
		AcquiredAt: ev.At.UTC(),
	}
	if id, err := uuid.Parse(ev.Snapshot.RoundID); err == nil {
		rec.RoundID = &id
	}
	if acq := ev.Acquisition; acq != nil {
		rec.Origin = string(acq.Origin)
		rec.Reason = string(acq.Reason)
		rec.QuestionCount = len(acq.Questions)
		rec.LatencyMS = acq.Latency.Milliseconds()
	}
	return rec
}

// offerLatest delivers snap without blocking, replacing any undelivered one.
func offerLatest(ch chan game.Snapshot, snap game.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func (s *SessionService) dispatch(ctx context.Context, item outboxItem) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if item.msg != nil {
		if err := s.publisher.Publish(ctx, *item.msg); err != nil {
			s.log.Warn().Err(err).Str("session_id", item.msg.SessionID).Msg("Publish session event failed")
		}
	}
	if item.audit != nil {
		if err := s.audit.Record(ctx, *item.audit); err != nil {
			s.log.Warn().Err(err).Str("session_id", item.audit.SessionID.String()).Msg("Record acquisition failed")
		}
	}
}

func (s *SessionService) drain() {
	for {
		select {
		case item := <-s.outbox:
			s.dispatch(context.Background(), item)
		default:
			return
		}
	}
}
