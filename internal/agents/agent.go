package agents

import (
	"context"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

// Kind enumerates the closed set of agent specializations. Planner
// output outside this set is never dispatched.
type Kind string

const (
	KindDataAnalysis     Kind = "data-analysis"
	KindAdvisory         Kind = "advisory"
	KindMarketLookup     Kind = "market-lookup"
	KindGeneralKnowledge Kind = "general-knowledge"
)

// KnownKinds returns all dispatchable agent kinds
func KnownKinds() []Kind {
	return []Kind{KindDataAnalysis, KindAdvisory, KindMarketLookup, KindGeneralKnowledge}
}

// ParseKind validates a planner-supplied agent name against the known set
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindDataAnalysis, KindAdvisory, KindMarketLookup, KindGeneralKnowledge:
		return Kind(s), true
	}
	return "", false
}

// FailureKind classifies why an agent could not answer
type FailureKind string

const (
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureNoData              FailureKind = "no_data"
	FailureTimeout             FailureKind = "timeout"
)

// Result is an agent's answer or classified failure. Agents never let
// raw errors cross this boundary; one agent's failure must never abort
// the whole turn.
type Result struct {
	Text    string
	Failure *Failure
}

// Failure carries the classified reason an agent could not answer
type Failure struct {
	Kind    FailureKind
	Message string
}

// Success builds a successful result
func Success(text string) Result {
	return Result{Text: text}
}

// Failed builds a failed result
func Failed(kind FailureKind, message string) Result {
	return Result{Failure: &Failure{Kind: kind, Message: message}}
}

// OK reports whether the agent produced a usable answer
func (r Result) OK() bool {
	return r.Failure == nil
}

// Agent is the uniform capability contract. Agents are read-only with
// respect to the turn; their backing data source is their own concern.
type Agent interface {
	Kind() Kind
	Answer(ctx context.Context, question string, bundle *chat.ContextBundle) Result
}

// classify maps an internal error to a failure result
func classify(err error) Result {
	switch {
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Failed(FailureTimeout, "the lookup timed out")
	case errors.Is(err, errors.ErrNoData), errors.Is(err, errors.ErrNotFound):
		return Failed(FailureNoData, "no relevant data was found")
	default:
		return Failed(FailureUpstreamUnavailable, "the backing data source could not be reached")
	}
}
