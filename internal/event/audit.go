package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/model"
)

// AuditSink receives acquisition outcomes for the diagnostics log.
type AuditSink interface {
	Record(ctx context.Context, ev model.AcquisitionEvent) error
}

type redisQueueClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisAuditQueue enqueues acquisition events for the audit worker.
type RedisAuditQueue struct {
	rdb redisQueueClient
}

func NewRedisAuditQueue(rdb redisQueueClient) *RedisAuditQueue {
	return &RedisAuditQueue{rdb: rdb}
}

func (q *RedisAuditQueue) Record(ctx context.Context, ev model.AcquisitionEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal acquisition event: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistAcquisitionsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue acquisition event: %w", err)
	}
	return nil
}

// NopAuditSink drops every event.
type NopAuditSink struct{}

func (NopAuditSink) Record(context.Context, model.AcquisitionEvent) error { return nil }
