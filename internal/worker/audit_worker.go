package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/repository"
)

const (
	AuditBatchSize    = 50
	AuditBatchTimeout = 2 * time.Second
	AuditPollTimeout  = 1 * time.Second

	// AuditMaxAttempts is how many failed inserts an event survives before
	// it is dropped.
	AuditMaxAttempts = 3

	auditErrBackoff    = 500 * time.Millisecond
	auditMaxErrBackoff = 10 * time.Second
)

type auditQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// AuditWorker moves acquisition events from the Redis queue into Postgres.
type AuditWorker struct {
	repo  repository.AcquisitionRepository
	queue auditQueue
	log   zerolog.Logger

	errBackoff    time.Duration
	maxErrBackoff time.Duration
}

func NewAuditWorker(repo repository.AcquisitionRepository, queue auditQueue, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		repo:  repo,
		queue: queue,
		log:   log.With().Str("component", "audit_worker").Logger(),

		errBackoff:    auditErrBackoff,
		maxErrBackoff: auditMaxErrBackoff,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	batch := make([]*model.AcquisitionEvent, 0, AuditBatchSize)
	lastFlush := time.Now()
	backoff := w.errBackoff

	for {
		if len(batch) > 0 &&
			(len(batch) >= AuditBatchSize || time.Since(lastFlush) >= AuditBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.queue.BLPop(ctx, AuditPollTimeout, config.WorkerKey.PersistAcquisitionsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Dur("backoff", backoff).Msg("BLPop error")
					select {
					case <-ctx.Done():
					case <-time.After(backoff):
					}
					backoff = min(backoff*2, w.maxErrBackoff)
				}
				continue
			}
			backoff = w.errBackoff

			if len(item) < 2 {
				continue
			}

			var ev model.AcquisitionEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &ev)
		}
	}
}

// flushSafe writes the batch in one statement and falls back to row-by-row
// inserts. Rows that still fail go back on the queue until they have used up
// AuditMaxAttempts.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []*model.AcquisitionEvent) {
	if len(batch) == 0 {
		return
	}

	err := w.repo.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Acquisition events persisted")
		return
	}

	w.log.Warn().Err(err).Msg("bulk insert failed, using fallback")
	for _, ev := range batch {
		if err := w.repo.Insert(ctx, ev); err != nil {
			ev.Attempts++
			evLog := w.log.With().
				Str("session_id", ev.SessionID.String()).
				Int("attempts", ev.Attempts).
				Logger()
			if ev.Attempts >= AuditMaxAttempts {
				evLog.Error().Err(err).Msg("insert failed, dropping event")
				continue
			}
			evLog.Warn().Err(err).Msg("insert failed, requeueing")
			raw, _ := json.Marshal(ev)
			if err := w.queue.RPush(ctx, config.WorkerKey.PersistAcquisitionsQueue, raw).Err(); err != nil {
				evLog.Error().Err(err).Msg("requeue failed, event lost")
			}
		}
	}
}
