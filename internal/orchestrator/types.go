package orchestrator

import (
	"context"

	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
)

// Action is the planner's choice for the next step of a turn
type Action string

const (
	// ActionInvoke consults one named agent with a sub-question
	ActionInvoke Action = "invoke"
	// ActionFinish moves the turn to synthesis
	ActionFinish Action = "finish"
	// ActionAbstain declines to route; treated like finish
	ActionAbstain Action = "abstain"
)

// Decision is the planner's structured output. The contract is strict:
// Agent is always a known kind when Action is ActionInvoke.
type Decision struct {
	Action   Action
	Agent    agents.Kind
	Question string // sub-question for the agent
	Guidance string // synthesis instructions or a routing note
}

// Planner decides which agent, if any, should be consulted next.
// Implementations absorb their own backend failures: any hiccup comes
// back as a Finish decision, never as an error (the only error returned
// is the context's own, so cancellation still propagates).
type Planner interface {
	Decide(ctx context.Context, userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) (Decision, error)
}

// Emitter receives progress events synchronously at each state
// transition of the reasoning loop, in strict chronological order.
type Emitter interface {
	Emit(event chat.ProgressEvent)
}

// discardEmitter is used in non-streaming mode
type discardEmitter struct{}

func (discardEmitter) Emit(chat.ProgressEvent) {}

// Discard returns an emitter that drops every event
func Discard() Emitter {
	return discardEmitter{}
}
