package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/config"
	"github.com/stemsi/quizlock/internal/game"
	"github.com/streadway/amqp"
)

// Message is one session transition as seen by outside observers.
type Message struct {
	SessionID string        `json:"session_id"`
	Kind      string        `json:"kind"`
	State     game.State    `json:"state"`
	Snapshot  game.Snapshot `json:"snapshot"`
	At        time.Time     `json:"at"`
}

// RoutingKey returns the topic key for the state the session moved into,
// e.g. "quiz.session.playing".
func (m Message) RoutingKey() string {
	return config.CacheKey.SessionRoutingKey(strings.ToLower(string(m.State)))
}

// Publisher mirrors session transitions to an external system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// ----------------------------------------------------------------
// No-op
// ----------------------------------------------------------------

// NopPublisher discards every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Message) error { return nil }
func (NopPublisher) Close() error                           { return nil }

// ----------------------------------------------------------------
// Redis Pub/Sub
// ----------------------------------------------------------------

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes each message on the session's events channel.
type RedisPublisher struct {
	rdb redisPublishClient
}

func NewRedisPublisher(rdb redisPublishClient) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := config.CacheKey.SessionEventsChannel(msg.SessionID)
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (p *RedisPublisher) Close() error { return nil }

// ----------------------------------------------------------------
// AMQP topic exchange
// ----------------------------------------------------------------

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes messages to a durable topic exchange, keyed by the
// state the session entered.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(_ context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.Publish(
		p.exchange,
		msg.RoutingKey(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    msg.At,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// ----------------------------------------------------------------
// Fan-out
// ----------------------------------------------------------------

// Multi publishes to every wrapped publisher. A failing target is logged and
// does not stop delivery to the others.
type Multi struct {
	targets []Publisher
	log     zerolog.Logger
}

func NewMulti(log zerolog.Logger, targets ...Publisher) *Multi {
	return &Multi{
		targets: targets,
		log:     log.With().Str("component", "event_publisher").Logger(),
	}
}

func (m *Multi) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Publish(ctx, msg); err != nil {
			m.log.Warn().Err(err).
				Str("session_id", msg.SessionID).
				Str("kind", msg.Kind).
				Msg("Failed to publish session event")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, t := range m.targets {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
