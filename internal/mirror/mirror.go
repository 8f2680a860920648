// Package mirror republishes poll lifecycle events to Redis so other services
// (dashboards, graders) can follow the classroom without a websocket.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livepoll-server/internal/core"
	"github.com/vovakirdan/livepoll-server/internal/proto"
	"github.com/vovakirdan/livepoll-server/internal/store"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 64

	EventPollOpened = "poll-opened"
	EventPollClosed = "poll-closed"
)

// Publisher sends an encoded message to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, body []byte) error
}

// Payload is the message published for every lifecycle event.
type Payload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

type redisPublisher struct {
	client *redis.Client
}

func (p redisPublisher) Publish(ctx context.Context, channel string, body []byte) error {
	return p.client.Publish(ctx, channel, body).Err()
}

// Mirror queues lifecycle events and publishes them from its own goroutine,
// so the hub never waits on the network.
type Mirror struct {
	pub     Publisher
	channel string
	log     *zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan Payload
	done   chan struct{}

	closer func() error
}

// New starts a mirror publishing through pub.
func New(pub Publisher, channel string, logger *zerolog.Logger) *Mirror {
	m := &Mirror{
		pub:     pub,
		channel: channel,
		log:     logger,
		now:     time.Now,
		queue:   make(chan Payload, queueSize),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// NewRedis connects to Redis, verifies connectivity and starts a mirror on channel.
func NewRedis(ctx context.Context, addr, password string, db int, channel string, logger *zerolog.Logger) (*Mirror, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info().Str("addr", addr).Str("channel", channel).Msg("redis mirror connected")

	m := New(redisPublisher{client: rdb}, channel, logger)
	m.closer = rdb.Close
	return m, nil
}

// PollOpened implements core.Mirror.
func (m *Mirror) PollOpened(q core.Question) {
	m.enqueue(EventPollOpened, proto.NewQuestionData{
		Question: q.Text,
		Options:  q.Options,
		Duration: q.Duration.Milliseconds(),
		Deadline: q.Deadline.UnixMilli(),
	})
}

// PollClosed implements core.Mirror.
func (m *Mirror) PollClosed(rec *store.PollRecord) {
	m.enqueue(EventPollClosed, proto.HistoryEntryFromRecord(rec))
}

func (m *Mirror) enqueue(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		m.log.Error().Err(err).Str("event", event).Msg("mirror encode failed")
		return
	}
	p := Payload{Event: event, Data: raw, At: m.now().UnixMilli()}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- p:
	default:
		m.log.Warn().Str("event", event).Msg("mirror queue full, event dropped")
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for p := range m.queue {
		body, err := json.Marshal(p)
		if err != nil {
			m.log.Error().Err(err).Msg("mirror encode failed")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := m.pub.Publish(ctx, m.channel, body); err != nil {
			m.log.Warn().Err(err).Str("event", p.Event).Msg("mirror publish failed")
		}
		cancel()
	}
}

// Close flushes queued events and releases the Redis client.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	<-m.done
	if m.closer != nil {
		return m.closer()
	}
	return nil
}

var _ core.Mirror = (*Mirror)(nil)
