package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a user's conversation history.
// Messages are immutable once appended and strictly time-ordered.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextBundle is the read-only snapshot assembled once per turn.
// The planner and every invoked agent see the identical bundle.
type ContextBundle struct {
	UserID       string
	UserName     string
	Currency     string
	Timezone     string
	Digest       string    // bounded financial summary, aggregated not raw
	History      []Message // last K messages of the session
	AssembledAt  time.Time
}

// AgentInvocation records one agent consultation within a turn.
// Immutable once the agent returns; ordinals are strictly increasing
// and match invocation order.
type AgentInvocation struct {
	Agent       string
	Question    string
	Answer      string
	FailureKind string // empty on success
	FailureMsg  string
	Ordinal     int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Succeeded reports whether the agent produced a usable answer
func (inv AgentInvocation) Succeeded() bool {
	return inv.FailureKind == ""
}

// TurnResult is the aggregated outcome of one turn
type TurnResult struct {
	TurnID          uuid.UUID `json:"turn_id"`
	Answer          string    `json:"answer"`
	AgentsConsulted []string  `json:"agents_consulted"`
	Iterations      int       `json:"iterations"`
}

// EventType tags a progress event
type EventType string

const (
	EventTurnStarted    EventType = "turn_started"
	EventAgentStarted   EventType = "agent_started"
	EventAgentCompleted EventType = "agent_completed"
	EventAgentFailed    EventType = "agent_failed"
	EventAnswerReady    EventType = "answer_ready"
	EventTurnFailed     EventType = "turn_failed"
)

// ProgressEvent is one unit of the ordered status stream for a turn.
// Exactly one terminal event (answer_ready or turn_failed) ends every
// turn's stream; agent start/complete pairs are strictly interleaved.
type ProgressEvent struct {
	Type    EventType   `json:"type"`
	TurnID  uuid.UUID   `json:"turn_id"`
	Agent   string      `json:"agent,omitempty"`
	Ordinal int         `json:"ordinal,omitempty"`
	Note    string      `json:"note,omitempty"`
	Result  *TurnResult `json:"result,omitempty"` // answer_ready only
	Error   string      `json:"error,omitempty"`  // turn_failed only, user-safe
}
