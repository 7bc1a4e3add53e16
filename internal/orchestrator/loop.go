package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kamra34/agentic-fin-tracker/internal/agents"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/events"
	"github.com/kamra34/agentic-fin-tracker/internal/metrics"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

const (
	outcomeAnswered = "answered"
	outcomeFailed   = "failed"

	msgContextUnavailable = "I could not load your financial context right now. Please try again in a moment."
	msgCancelled          = "The request was cancelled before an answer was ready."
)

// Loop runs one conversation turn as a sequential state machine:
// assemble context, then alternate planner decisions and single-agent
// invocations until the planner finishes or the iteration budget runs
// out, then synthesize. Agents are never invoked in parallel and never
// twice per turn; a failed agent is recorded and the turn continues.
type Loop struct {
	assembler     *Assembler
	planner       Planner
	registry      *agents.Registry
	synthesizer   *Synthesizer
	sessions      *chat.Service
	metrics       *metrics.Chat
	publisher     *events.TurnPublisher
	maxIterations int
	agentTimeout  time.Duration
	log           *logger.Logger
}

// LoopConfig bounds a turn
type LoopConfig struct {
	MaxIterations int
	AgentTimeout  time.Duration
}

// NewLoop wires the reasoning loop. metrics and publisher may be nil.
func NewLoop(
	assembler *Assembler,
	planner Planner,
	registry *agents.Registry,
	synthesizer *Synthesizer,
	sessions *chat.Service,
	chatMetrics *metrics.Chat,
	publisher *events.TurnPublisher,
	cfg LoopConfig,
) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = 30 * time.Second
	}
	return &Loop{
		assembler:     assembler,
		planner:       planner,
		registry:      registry,
		synthesizer:   synthesizer,
		sessions:      sessions,
		metrics:       chatMetrics,
		publisher:     publisher,
		maxIterations: cfg.MaxIterations,
		agentTimeout:  cfg.AgentTimeout,
		log:           logger.Get().With("component", "reasoning_loop"),
	}
}

// Run executes one turn for the user. The emitter receives the ordered
// progress stream: one turn_started, strictly paired agent events, and
// exactly one terminal event, answer_ready or turn_failed, whether the
// turn succeeds, fails, or is cancelled.
func (l *Loop) Run(ctx context.Context, userID, message string, emitter Emitter) (*chat.TurnResult, error) {
	if userID == "" || message == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "user_id and message are required")
	}
	if emitter == nil {
		emitter = Discard()
	}

	turnID := uuid.New()
	started := time.Now()
	log := l.log.With("turn", turnID.String(), "user", userID)

	emitter.Emit(chat.ProgressEvent{Type: chat.EventTurnStarted, TurnID: turnID})

	history, err := l.sessions.History(ctx, userID)
	if err != nil {
		// A missing history degrades the bundle, it does not fail the turn
		log.Warnf("Failed to load session history: %v", err)
		history = nil
	}

	bundle, err := l.assembler.Assemble(ctx, userID, history)
	if err != nil {
		log.Errorf("Context assembly failed: %v", err)
		l.failTurn(ctx, emitter, turnID, userID, started, msgContextUnavailable)
		return nil, err
	}

	var (
		invocations []chat.AgentInvocation
		guidance    string
	)

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			l.failTurn(ctx, emitter, turnID, userID, started, msgCancelled)
			return nil, err
		}

		decision, err := l.planner.Decide(ctx, message, bundle, invocations)
		if err != nil {
			l.failTurn(ctx, emitter, turnID, userID, started, msgCancelled)
			return nil, err
		}
		l.metrics.ObserveDecision(string(decision.Action))

		if decision.Action != ActionInvoke {
			guidance = decision.Guidance
			break
		}

		agent, ok := l.registry.Get(decision.Agent)
		if !ok {
			// Unrecognized agent names end the turn gracefully
			log.Warnf("Planner chose unregistered agent %q, finishing", decision.Agent)
			break
		}
		if consulted(invocations, decision.Agent) {
			// Each specialist speaks at most once per turn
			log.Warnf("Planner re-chose agent %q, finishing", decision.Agent)
			break
		}

		invocations = append(invocations, l.invoke(ctx, emitter, turnID, agent, decision.Question, bundle, len(invocations)+1))
	}

	if err := ctx.Err(); err != nil {
		l.failTurn(ctx, emitter, turnID, userID, started, msgCancelled)
		return nil, err
	}

	answer := l.synthesizer.Compose(ctx, message, bundle, invocations, guidance)

	result := &chat.TurnResult{
		TurnID:          turnID,
		Answer:          answer,
		AgentsConsulted: consultedNames(invocations),
		Iterations:      len(invocations),
	}

	emitter.Emit(chat.ProgressEvent{Type: chat.EventAnswerReady, TurnID: turnID, Result: result})

	// The answer is already committed to the stream; persistence and
	// telemetry run even if the caller has gone away
	bg := context.WithoutCancel(ctx)
	if err := l.sessions.AppendExchange(bg, userID, message, answer); err != nil {
		log.Errorf("Failed to persist exchange: %v", err)
	}

	elapsed := time.Since(started)
	l.metrics.ObserveTurn(outcomeAnswered, elapsed.Seconds(), result.Iterations)
	l.publisher.TurnCompleted(bg, events.TurnCompletedEvent{
		TurnID:          turnID,
		UserID:          userID,
		AgentsConsulted: result.AgentsConsulted,
		Iterations:      result.Iterations,
		DurationMs:      elapsed.Milliseconds(),
	})

	log.Infof("Turn answered: agents=%v iterations=%d duration=%s",
		result.AgentsConsulted, result.Iterations, elapsed.Round(time.Millisecond))
	return result, nil
}

// invoke consults one agent under its own deadline and records the
// outcome. The record is immutable once returned.
func (l *Loop) invoke(ctx context.Context, emitter Emitter, turnID uuid.UUID, agent agents.Agent, question string, bundle *chat.ContextBundle, ordinal int) chat.AgentInvocation {
	name := string(agent.Kind())

	emitter.Emit(chat.ProgressEvent{
		Type:    chat.EventAgentStarted,
		TurnID:  turnID,
		Agent:   name,
		Ordinal: ordinal,
		Note:    question,
	})

	actx, cancel := context.WithTimeout(ctx, l.agentTimeout)
	startedAt := time.Now().UTC()
	res := agent.Answer(actx, question, bundle)
	finishedAt := time.Now().UTC()
	cancel()

	inv := chat.AgentInvocation{
		Agent:      name,
		Question:   question,
		Ordinal:    ordinal,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if res.OK() {
		inv.Answer = res.Text
		emitter.Emit(chat.ProgressEvent{Type: chat.EventAgentCompleted, TurnID: turnID, Agent: name, Ordinal: ordinal})
		l.metrics.ObserveAgent(name, "ok", finishedAt.Sub(startedAt).Seconds())
	} else {
		inv.FailureKind = string(res.Failure.Kind)
		inv.FailureMsg = res.Failure.Message
		emitter.Emit(chat.ProgressEvent{
			Type:    chat.EventAgentFailed,
			TurnID:  turnID,
			Agent:   name,
			Ordinal: ordinal,
			Note:    res.Failure.Message,
		})
		l.metrics.ObserveAgent(name, string(res.Failure.Kind), finishedAt.Sub(startedAt).Seconds())
	}

	return inv
}

// failTurn emits the terminal failure event and records telemetry
func (l *Loop) failTurn(ctx context.Context, emitter Emitter, turnID uuid.UUID, userID string, started time.Time, reason string) {
	emitter.Emit(chat.ProgressEvent{Type: chat.EventTurnFailed, TurnID: turnID, Error: reason})

	elapsed := time.Since(started)
	l.metrics.ObserveTurn(outcomeFailed, elapsed.Seconds(), 0)
	l.publisher.TurnFailed(context.WithoutCancel(ctx), events.TurnFailedEvent{
		TurnID:     turnID,
		UserID:     userID,
		Reason:     reason,
		DurationMs: elapsed.Milliseconds(),
	})
}

// consulted reports whether the kind already spoke this turn
func consulted(invocations []chat.AgentInvocation, kind agents.Kind) bool {
	for _, inv := range invocations {
		if inv.Agent == string(kind) {
			return true
		}
	}
	return false
}

// consultedNames lists the agents that produced usable answers, in
// invocation order. Failed consultations are excluded.
func consultedNames(invocations []chat.AgentInvocation) []string {
	names := []string{}
	for _, inv := range invocations {
		if inv.Succeeded() {
			names = append(names, inv.Agent)
		}
	}
	return names
}
