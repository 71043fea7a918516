package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizlock/internal/model"
)

// OriginStat is the number of acquisitions per origin and reason.
type OriginStat struct {
	Origin string `json:"origin"`
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

type AcquisitionRepository interface {
	Insert(ctx context.Context, ev *model.AcquisitionEvent) error
	InsertBatch(ctx context.Context, events []*model.AcquisitionEvent) error
	ListRecent(ctx context.Context, limit int) ([]*model.AcquisitionEvent, error)
	StatsSince(ctx context.Context, since time.Time) ([]OriginStat, error)
}

type acquisitionRepository struct {
	db *pgxpool.Pool
}

func NewAcquisitionRepository(db *pgxpool.Pool) AcquisitionRepository {
	return &acquisitionRepository{db: db}
}

func (r *acquisitionRepository) Insert(ctx context.Context, ev *model.AcquisitionEvent) error {
	query := `
		INSERT INTO acquisition_events
			(session_id, round_id, origin, reason, question_count, latency_ms, succeeded, acquired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.db.QueryRow(ctx, query,
		ev.SessionID, ev.RoundID, ev.Origin, ev.Reason,
		ev.QuestionCount, ev.LatencyMS, ev.Succeeded, ev.AcquiredAt,
	).Scan(&ev.ID)
}

// InsertBatch writes all events in one statement using UNNEST.
func (r *acquisitionRepository) InsertBatch(ctx context.Context, events []*model.AcquisitionEvent) error {
	if len(events) == 0 {
		return nil
	}

	n := len(events)
	sessionIDs := make([]uuid.UUID, n)
	roundIDs := make([]*uuid.UUID, n)
	origins := make([]string, n)
	reasons := make([]string, n)
	counts := make([]int32, n)
	latencies := make([]int64, n)
	succeeded := make([]bool, n)
	acquiredAts := make([]time.Time, n)

	for i, ev := range events {
		sessionIDs[i] = ev.SessionID
		roundIDs[i] = ev.RoundID
		origins[i] = ev.Origin
		reasons[i] = ev.Reason
		counts[i] = int32(ev.QuestionCount)
		latencies[i] = ev.LatencyMS
		succeeded[i] = ev.Succeeded
		acquiredAts[i] = ev.AcquiredAt
	}

	query := `
		INSERT INTO acquisition_events
			(session_id, round_id, origin, reason, question_count, latency_ms, succeeded, acquired_at)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::varchar[],
			$4::varchar[],
			$5::int[],
			$6::bigint[],
			$7::bool[],
			$8::timestamptz[]
		)
	`

	_, err := r.db.Exec(ctx, query,
		sessionIDs, roundIDs, origins, reasons, counts, latencies, succeeded, acquiredAts)
	return err
}

func (r *acquisitionRepository) ListRecent(ctx context.Context, limit int) ([]*model.AcquisitionEvent, error) {
	query := `
		SELECT id, session_id, round_id, origin, reason, question_count, latency_ms, succeeded, acquired_at
		FROM acquisition_events
		ORDER BY acquired_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.AcquisitionEvent
	for rows.Next() {
		ev := &model.AcquisitionEvent{}
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.RoundID, &ev.Origin, &ev.Reason,
			&ev.QuestionCount, &ev.LatencyMS, &ev.Succeeded, &ev.AcquiredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *acquisitionRepository) StatsSince(ctx context.Context, since time.Time) ([]OriginStat, error) {
	query := `
		SELECT origin, reason, COUNT(*)
		FROM acquisition_events
		WHERE acquired_at >= $1
		GROUP BY origin, reason
		ORDER BY origin, reason
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []OriginStat
	for rows.Next() {
		var s OriginStat
		if err := rows.Scan(&s.Origin, &s.Reason, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
