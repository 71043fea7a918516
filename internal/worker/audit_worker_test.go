package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/repository"
)

type fakeQueue struct {
	mu       sync.Mutex
	items    []string
	requeued []string
	pollErr  error
	pushErr  error
	polls    int
}

func (q *fakeQueue) BLPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	q.mu.Lock()
	q.polls++
	if q.pollErr != nil {
		q.mu.Unlock()
		cmd.SetErr(q.pollErr)
		return cmd
	}
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		cmd.SetVal([]string{keys[0], item})
		return cmd
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		cmd.SetErr(ctx.Err())
	case <-time.After(5 * time.Millisecond):
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (q *fakeQueue) RPush(ctx context.Context, _ string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if q.pushErr != nil {
		cmd.SetErr(q.pushErr)
		return cmd
	}
	for _, v := range values {
		raw, _ := v.([]byte)
		q.requeued = append(q.requeued, string(raw))
	}
	cmd.SetVal(int64(len(q.requeued)))
	return cmd
}

func (q *fakeQueue) empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

type fakeRepo struct {
	mu       sync.Mutex
	batchErr error
	failFor  uuid.UUID
	inserted []*model.AcquisitionEvent
	batches  int
}

func (r *fakeRepo) Insert(_ context.Context, ev *model.AcquisitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.SessionID == r.failFor {
		return errors.New("constraint violation")
	}
	r.inserted = append(r.inserted, ev)
	return nil
}

func (r *fakeRepo) InsertBatch(_ context.Context, events []*model.AcquisitionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.batchErr != nil {
		return r.batchErr
	}
	r.inserted = append(r.inserted, events...)
	return nil
}

func (r *fakeRepo) ListRecent(context.Context, int) ([]*model.AcquisitionEvent, error) {
	return nil, nil
}

func (r *fakeRepo) StatsSince(context.Context, time.Time) ([]repository.OriginStat, error) {
	return nil, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

func encodedEvent(t *testing.T, id uuid.UUID) string {
	t.Helper()
	raw, err := json.Marshal(model.AcquisitionEvent{
		SessionID:  id,
		Origin:     "remote",
		Succeeded:  true,
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func TestAuditWorkerFlushesOnShutdown(t *testing.T) {
	queue := &fakeQueue{items: []string{
		encodedEvent(t, uuid.New()),
		"{not json",
		encodedEvent(t, uuid.New()),
		encodedEvent(t, uuid.New()),
	}}
	repo := &fakeRepo{}
	w := NewAuditWorker(repo, queue, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !queue.empty() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not consume the queue")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if got := repo.count(); got != 3 {
		t.Errorf("expected 3 persisted events, got %d", got)
	}
}

func TestAuditWorkerFallsBackToSingleInserts(t *testing.T) {
	bad := uuid.New()
	repo := &fakeRepo{batchErr: errors.New("deadlock detected"), failFor: bad}
	queue := &fakeQueue{}
	w := NewAuditWorker(repo, queue, zerolog.Nop())

	batch := []*model.AcquisitionEvent{
		{SessionID: uuid.New()},
		{SessionID: bad},
		{SessionID: uuid.New()},
	}
	w.flushSafe(context.Background(), batch)

	if got := repo.count(); got != 2 {
		t.Errorf("expected 2 single inserts, got %d", got)
	}
	if len(queue.requeued) != 1 {
		t.Fatalf("expected 1 requeued event, got %d", len(queue.requeued))
	}

	var ev model.AcquisitionEvent
	if err := json.Unmarshal([]byte(queue.requeued[0]), &ev); err != nil {
		t.Fatalf("requeued payload: %v", err)
	}
	if ev.SessionID != bad {
		t.Errorf("wrong event requeued: %s", ev.SessionID)
	}
	if ev.Attempts != 1 {
		t.Errorf("expected attempts 1 on requeued event, got %d", ev.Attempts)
	}
}

func TestAuditWorkerDropsEventAfterMaxAttempts(t *testing.T) {
	bad := uuid.New()
	repo := &fakeRepo{batchErr: errors.New("deadlock detected"), failFor: bad}
	queue := &fakeQueue{}
	w := NewAuditWorker(repo, queue, zerolog.Nop())

	ev := &model.AcquisitionEvent{SessionID: bad}
	for i := 1; i < AuditMaxAttempts; i++ {
		w.flushSafe(context.Background(), []*model.AcquisitionEvent{ev})
		if len(queue.requeued) != i {
			t.Fatalf("attempt %d: expected %d requeued, got %d", i, i, len(queue.requeued))
		}
	}

	w.flushSafe(context.Background(), []*model.AcquisitionEvent{ev})
	if len(queue.requeued) != AuditMaxAttempts-1 {
		t.Errorf("event requeued after %d attempts", ev.Attempts)
	}
	if ev.Attempts != AuditMaxAttempts {
		t.Errorf("expected %d attempts, got %d", AuditMaxAttempts, ev.Attempts)
	}
}

func TestAuditWorkerRequeueFailureIsNotFatal(t *testing.T) {
	bad := uuid.New()
	repo := &fakeRepo{batchErr: errors.New("deadlock detected"), failFor: bad}
	queue := &fakeQueue{pushErr: errors.New("connection refused")}
	w := NewAuditWorker(repo, queue, zerolog.Nop())

	w.flushSafe(context.Background(), []*model.AcquisitionEvent{{SessionID: bad}, {SessionID: uuid.New()}})

	if got := repo.count(); got != 1 {
		t.Errorf("expected the healthy event to be inserted, got %d", got)
	}
	if len(queue.requeued) != 0 {
		t.Errorf("expected nothing requeued, got %d", len(queue.requeued))
	}
}

func TestAuditWorkerBacksOffOnQueueErrors(t *testing.T) {
	queue := &fakeQueue{pollErr: errors.New("dial tcp: connection refused")}
	w := NewAuditWorker(&fakeRepo{}, queue, zerolog.Nop())
	w.errBackoff = 20 * time.Millisecond
	w.maxErrBackoff = 40 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	w.Start(ctx)

	queue.mu.Lock()
	polls := queue.polls
	queue.mu.Unlock()

	// 20ms, then 40ms waits: a handful of polls fit in 150ms.
	if polls < 2 || polls > 10 {
		t.Errorf("expected a few polls while backing off, got %d", polls)
	}
}

func TestAuditWorkerSkipsEmptyBatch(t *testing.T) {
	repo := &fakeRepo{}
	w := NewAuditWorker(repo, &fakeQueue{}, zerolog.Nop())
	w.flushSafe(context.Background(), nil)
	if repo.batches != 0 {
		t.Errorf("empty batch hit the repository %d times", repo.batches)
	}
}
