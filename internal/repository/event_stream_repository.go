package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProvisioningEvent is published to downstream account and course provisioning.
type ProvisioningEvent struct {
	Type       string      `json:"type"`
	EntityID   string      `json:"entity_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// EventStreamRepository appends provisioning events to a Redis stream.
type EventStreamRepository struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewEventStreamRepository constructs the repository. A nil client turns
// Append into a logged no-op.
func NewEventStreamRepository(client *redis.Client, stream string, logger *zap.Logger) *EventStreamRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStreamRepository{client: client, stream: stream, maxLen: 10000, logger: logger}
}

// Append publishes the event and returns the stream entry id.
func (r *EventStreamRepository) Append(ctx context.Context, event ProvisioningEvent) (string, error) {
	if r.client == nil {
		r.logger.Debug("event stream disabled, dropping event", zap.String("type", event.Type), zap.String("entity_id", event.EntityID))
		return "", nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload for %s: %w", event.Type, err)
	}
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        event.Type,
			"entity_id":   event.EntityID,
			"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
			"payload":     string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	return id, nil
}

// Close releases the underlying Redis connection if present.
func (r *EventStreamRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
