package events

// Kafka topics for chat telemetry
const (
	TopicTurnCompleted = "chat.turn.completed"
	TopicTurnFailed    = "chat.turn.failed"
)
