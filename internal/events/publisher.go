package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-scraper/internal/models"
)

// EventType represents the type of run event
type EventType string

const (
	EventTypeRunStarted     EventType = "RUN_STARTED"
	EventTypeAttemptFailed  EventType = "ATTEMPT_FAILED"
	EventTypeItemSucceeded  EventType = "ITEM_SUCCEEDED"
	EventTypeItemSkipped    EventType = "ITEM_SKIPPED"
	EventTypeSessionRotated EventType = "SESSION_ROTATED"
	EventTypeRunFinished    EventType = "RUN_FINISHED"
)

// DefaultStream is the Redis stream run events are appended to.
const DefaultStream = "stream:listing_scraper"

// Event is one notable step of a scrape run.
type Event struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	URL       string          `json:"url,omitempty"`
	Attempt   int             `json:"attempt,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Rows      int             `json:"rows,omitempty"`
	Error     string          `json:"error,omitempty"`
	Summary   *models.Summary `json:"summary,omitempty"`
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// Publisher appends run events to a Redis stream. Publishing is best-effort:
// failures are logged and never interrupt the run.
type Publisher struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// NewPublisher creates a publisher writing to stream, trimmed to roughly maxLen entries.
func NewPublisher(client RedisClient, stream string, maxLen int64, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.With("component", "event_publisher"),
	}
}

// Publish sends ev. A nil publisher discards it.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	if err := p.publish(ctx, &ev); err != nil {
		p.logger.Warn("failed to publish event",
			"type", ev.EventType,
			"url", ev.URL,
			"error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, ev *Event) error {
	if ev.EventID == "" {
		ev.EventID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"event_type": string(ev.EventType),
			"event_id":   ev.EventID,
			"run_id":     ev.RunID,
			"timestamp":  fmt.Sprintf("%d", ev.Timestamp.UnixNano()),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published", "type", ev.EventType, "event_id", ev.EventID)
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.redis.Close()
}
