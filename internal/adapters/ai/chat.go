package ai

import "context"

// ChatCompleter is the minimal LLM contract the orchestration core depends on.
// The planner, the agents, and the synthesizer all speak through it.
type ChatCompleter interface {
	// Complete sends a conversation and optional tool definitions,
	// returning the model's reply and any tool calls it requested.
	Complete(ctx context.Context, msgs []Message, tools []ToolDefinition) (*Completion, error)
}

// MessageRole defines the role of a message sender
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a completion request
type Message struct {
	Role    MessageRole
	Content string
}

// ToolDefinition describes a function the model may call
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON schema
}

// ToolCall represents a function call requested by the model
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded arguments
}

// Completion is the model's reply
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Tokens    int
}
