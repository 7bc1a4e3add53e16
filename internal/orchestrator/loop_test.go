package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/internal/repository/memory"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

// fakeFinanceRepo serves a fixed profile and aggregates
type fakeFinanceRepo struct {
	profileErr error
}

func (f *fakeFinanceRepo) GetProfile(ctx context.Context, userID string) (*finance.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return &finance.Profile{
		UserID:   userID,
		FullName: "Test User",
		Currency: "SEK",
		Timezone: "Europe/Stockholm",
	}, nil
}

func (f *fakeFinanceRepo) GetAggregates(ctx context.Context, userID string, month time.Time) (*finance.Aggregates, error) {
	return &finance.Aggregates{
		Month:      month,
		TotalSpent: decimal.NewFromInt(12000),
	}, nil
}

// scriptPlanner returns scripted decisions in order, then finishes
type scriptPlanner struct {
	decisions []Decision
	calls     int
}

func (p *scriptPlanner) Decide(ctx context.Context, userMessage string, bundle *chat.ContextBundle, sofar []chat.AgentInvocation) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if p.calls >= len(p.decisions) {
		return Decision{Action: ActionFinish}, nil
	}
	d := p.decisions[p.calls]
	p.calls++
	return d, nil
}

// fakeAgent answers with a fixed result
type fakeAgent struct {
	kind   agents.Kind
	result agents.Result
}

func (a *fakeAgent) Kind() agents.Kind { return a.kind }
func (a *fakeAgent) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) agents.Result {
	return a.result
}

// fakeCompleter returns a fixed completion or error
type fakeCompleter struct {
	content string
	err     error
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []ai.Message, tools []ai.ToolDefinition) (*ai.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Content: f.content}, nil
}

func invoke(kind agents.Kind, question string) Decision {
	return Decision{Action: ActionInvoke, Agent: kind, Question: question}
}

func newTestLoop(t *testing.T, planner Planner, registry *agents.Registry, repo finance.Repository, maxIterations int) (*Loop, *chat.Service) {
	t.Helper()
	sessions := chat.NewService(memory.NewChatSessionRepository())
	loop := NewLoop(
		NewAssembler(finance.NewService(repo), 10),
		planner,
		registry,
		NewSynthesizer(&fakeCompleter{content: "final answer"}, time.Second),
		sessions,
		nil,
		nil,
		LoopConfig{MaxIterations: maxIterations, AgentTimeout: time.Second},
	)
	return loop, sessions
}

func eventTypes(events []chat.ProgressEvent) []chat.EventType {
	types := make([]chat.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestRunSingleAgentTurn(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&fakeAgent{kind: agents.KindDataAnalysis, result: agents.Success("you spent 12000 SEK")})

	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindDataAnalysis, "total spend this month"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "how much did I spend?", emitter)
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.Answer)
	assert.Equal(t, []string{"data-analysis"}, result.AgentsConsulted)
	assert.Equal(t, 1, result.Iterations)

	assert.Equal(t, []chat.EventType{
		chat.EventTurnStarted,
		chat.EventAgentStarted,
		chat.EventAgentCompleted,
		chat.EventAnswerReady,
	}, eventTypes(emitter.Events()))
}

func TestRunEventOrdinalsAndTurnID(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&fakeAgent{kind: agents.KindDataAnalysis, result: agents.Success("data")})
	registry.Register(&fakeAgent{kind: agents.KindAdvisory, result: agents.Success("advice")})

	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindDataAnalysis, "q1"),
		invoke(agents.KindAdvisory, "q2"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "analyze and advise", emitter)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Iterations)

	events := emitter.Events()
	turnID := events[0].TurnID
	for _, e := range events {
		assert.Equal(t, turnID, e.TurnID)
	}

	var ordinals []int
	for _, e := range events {
		if e.Type == chat.EventAgentStarted {
			ordinals = append(ordinals, e.Ordinal)
		}
	}
	assert.Equal(t, []int{1, 2}, ordinals)
}

func TestRunIterationBudgetForcesSynthesis(t *testing.T) {
	registry := agents.NewRegistry()
	for _, kind := range agents.KnownKinds() {
		registry.Register(&fakeAgent{kind: kind, result: agents.Success("answer from " + string(kind))})
	}

	// The planner never volunteers to finish
	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindDataAnalysis, "q"),
		invoke(agents.KindAdvisory, "q"),
		invoke(agents.KindMarketLookup, "q"),
		invoke(agents.KindGeneralKnowledge, "q"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 3)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "everything please", emitter)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Iterations)
	assert.Len(t, result.AgentsConsulted, 3)

	types := eventTypes(emitter.Events())
	assert.Equal(t, chat.EventAnswerReady, types[len(types)-1])
}

func TestRunDuplicateAgentEndsLoop(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&fakeAgent{kind: agents.KindAdvisory, result: agents.Success("advice")})

	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindAdvisory, "q1"),
		invoke(agents.KindAdvisory, "q2"),
		invoke(agents.KindAdvisory, "q3"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)

	result, err := loop.Run(context.Background(), "user-1", "advise me", NewCaptureEmitter())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, []string{"advisory"}, result.AgentsConsulted)
}

func TestRunUnregisteredAgentEndsLoop(t *testing.T) {
	registry := agents.NewRegistry() // nothing registered

	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindMarketLookup, "price of AAPL"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "AAPL?", emitter)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Iterations)
	assert.Empty(t, result.AgentsConsulted)
	assert.Equal(t, []chat.EventType{
		chat.EventTurnStarted,
		chat.EventAnswerReady,
	}, eventTypes(emitter.Events()))
}

func TestRunFailedAgentRecordedButExcluded(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&fakeAgent{
		kind:   agents.KindMarketLookup,
		result: agents.Failed(agents.FailureUpstreamUnavailable, "quote service down"),
	})

	planner := &scriptPlanner{decisions: []Decision{
		invoke(agents.KindMarketLookup, "price of AAPL"),
	}}

	loop, _ := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "AAPL?", emitter)
	require.NoError(t, err)

	// The failure is visible in the stream but never in the consulted list
	assert.Empty(t, result.AgentsConsulted)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, []chat.EventType{
		chat.EventTurnStarted,
		chat.EventAgentStarted,
		chat.EventAgentFailed,
		chat.EventAnswerReady,
	}, eventTypes(emitter.Events()))
}

func TestRunContextAssemblyFailure(t *testing.T) {
	repo := &fakeFinanceRepo{profileErr: errors.ErrUnavailable}
	loop, _ := newTestLoop(t, &scriptPlanner{}, agents.NewRegistry(), repo, 5)
	emitter := NewCaptureEmitter()

	result, err := loop.Run(context.Background(), "user-1", "hello", emitter)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextUnavailable))
	assert.Nil(t, result)

	assert.Equal(t, []chat.EventType{
		chat.EventTurnStarted,
		chat.EventTurnFailed,
	}, eventTypes(emitter.Events()))
}

func TestRunCancelledContext(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(&fakeAgent{kind: agents.KindAdvisory, result: agents.Success("advice")})

	loop, _ := newTestLoop(t, &scriptPlanner{}, registry, &fakeFinanceRepo{}, 5)
	emitter := NewCaptureEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := loop.Run(ctx, "user-1", "hello", emitter)
	require.Error(t, err)
	assert.Nil(t, result)

	types := eventTypes(emitter.Events())
	require.NotEmpty(t, types)
	assert.Equal(t, chat.EventTurnFailed, types[len(types)-1])
}

func TestRunPersistsExchange(t *testing.T) {
	registry := agents.NewRegistry()
	planner := &scriptPlanner{} // finishes immediately

	loop, sessions := newTestLoop(t, planner, registry, &fakeFinanceRepo{}, 5)

	_, err := loop.Run(context.Background(), "user-1", "hello there", Discard())
	require.NoError(t, err)

	history, err := sessions.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, chat.RoleUser, history[0].Role)
	assert.Equal(t, "hello there", history[0].Text)
	assert.Equal(t, chat.RoleAssistant, history[1].Role)
	assert.Equal(t, "final answer", history[1].Text)
	assert.True(t, history[0].Timestamp.Before(history[1].Timestamp))
}

func TestRunRejectsEmptyInput(t *testing.T) {
	loop, _ := newTestLoop(t, &scriptPlanner{}, agents.NewRegistry(), &fakeFinanceRepo{}, 5)

	_, err := loop.Run(context.Background(), "", "hello", Discard())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = loop.Run(context.Background(), "user-1", "", Discard())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
