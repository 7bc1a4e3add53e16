package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/kafka"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// TurnCompletedEvent is the telemetry record of an answered turn
type TurnCompletedEvent struct {
	TurnID          uuid.UUID `json:"turn_id"`
	UserID          string    `json:"user_id"`
	AgentsConsulted []string  `json:"agents_consulted"`
	Iterations      int       `json:"iterations"`
	DurationMs      int64     `json:"duration_ms"`
	Timestamp       time.Time `json:"timestamp"`
}

// TurnFailedEvent is the telemetry record of a failed turn
type TurnFailedEvent struct {
	TurnID     uuid.UUID `json:"turn_id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// TurnPublisher emits turn telemetry to Kafka. A nil publisher or a
// nil producer is valid and publishes nothing; telemetry never blocks
// or fails a turn, so errors are logged and swallowed.
type TurnPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewTurnPublisher creates a publisher; producer may be nil when Kafka
// is disabled.
func NewTurnPublisher(producer *kafka.Producer) *TurnPublisher {
	return &TurnPublisher{
		producer: producer,
		log:      logger.Get().With("component", "turn_publisher"),
	}
}

// TurnCompleted publishes a completed-turn event
func (p *TurnPublisher) TurnCompleted(ctx context.Context, event TurnCompletedEvent) {
	if p == nil || p.producer == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := p.producer.Publish(ctx, TopicTurnCompleted, event.UserID, event); err != nil {
		p.log.Warnf("Failed to publish turn completed event: %v", err)
	}
}

// TurnFailed publishes a failed-turn event
func (p *TurnPublisher) TurnFailed(ctx context.Context, event TurnFailedEvent) {
	if p == nil || p.producer == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := p.producer.Publish(ctx, TopicTurnFailed, event.UserID, event); err != nil {
		p.log.Warnf("Failed to publish turn failed event: %v", err)
	}
}
