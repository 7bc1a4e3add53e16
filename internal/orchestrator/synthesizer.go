package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Synthesizer composes the final answer of a turn from the agent
// results collected so far. Only successful invocations contribute
// content; failed ones are mentioned as gaps, never silently dropped.
// Synthesis always produces text, even when the completion backend is
// down, so a turn that reached this stage cannot fail anymore.
type Synthesizer struct {
	ai      ai.ChatCompleter
	timeout time.Duration
	log     *logger.Logger
}

// NewSynthesizer creates an answer synthesizer
func NewSynthesizer(completer ai.ChatCompleter, timeout time.Duration) *Synthesizer {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Synthesizer{
		ai:      completer,
		timeout: timeout,
		log:     logger.Get().With("component", "synthesizer"),
	}
}

// Compose builds the final user-facing answer. guidance carries the
// planner's synthesis instructions (or a direct reply) when present.
func (s *Synthesizer) Compose(ctx context.Context, userMessage string, bundle *chat.ContextBundle, invocations []chat.AgentInvocation, guidance string) string {
	succeeded, failed := splitInvocations(invocations)

	// Nothing was consulted and the planner already wrote the reply:
	// no second model round trip needed
	if len(invocations) == 0 && strings.TrimSpace(guidance) != "" {
		return guidance
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msgs := s.buildMessages(userMessage, bundle, succeeded, failed, guidance)
	completion, err := s.ai.Complete(ctx, msgs, nil)
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		if err != nil {
			s.log.Warnf("Synthesis completion failed, using fallback: %v", err)
		}
		return s.fallback(succeeded, failed)
	}

	return completion.Content
}

// buildMessages assembles the synthesis prompt from the turn's evidence
func (s *Synthesizer) buildMessages(userMessage string, bundle *chat.ContextBundle, succeeded, failed []chat.AgentInvocation, guidance string) []ai.Message {
	var system strings.Builder
	system.WriteString(`You are a personal financial assistant composing the final reply.
Use only the specialist findings below; do not invent numbers.
Answer in the language of the user's message, concise and friendly.
`)
	fmt.Fprintf(&system, "Preferred currency: %s.\n", bundle.Currency)
	if bundle.UserName != "" {
		fmt.Fprintf(&system, "The user's name is %s.\n", bundle.UserName)
	}

	if len(succeeded) > 0 {
		system.WriteString("\nSpecialist findings:\n")
		for _, inv := range succeeded {
			fmt.Fprintf(&system, "[%s]\n%s\n\n", inv.Agent, inv.Answer)
		}
	} else {
		system.WriteString("\nNo specialist findings are available for this turn.\n")
	}

	if len(failed) > 0 {
		system.WriteString("Some lookups did not complete; acknowledge the gap briefly:\n")
		for _, inv := range failed {
			fmt.Fprintf(&system, "- %s: %s\n", inv.Agent, inv.FailureMsg)
		}
	}

	if strings.TrimSpace(guidance) != "" {
		fmt.Fprintf(&system, "\nComposition instructions: %s\n", guidance)
	}

	return []ai.Message{
		{Role: ai.RoleSystem, Content: system.String()},
		{Role: ai.RoleUser, Content: userMessage},
	}
}

// fallback produces a deterministic answer when the model cannot.
// Raw agent answers are better than no answer at all.
func (s *Synthesizer) fallback(succeeded, failed []chat.AgentInvocation) string {
	var b strings.Builder

	for i, inv := range succeeded {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(inv.Answer)
	}

	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		names := make([]string, 0, len(failed))
		for _, inv := range failed {
			names = append(names, inv.Agent)
		}
		fmt.Fprintf(&b, "I could not complete every lookup (%s). Please try again in a moment.", strings.Join(names, ", "))
	}

	if b.Len() == 0 {
		return "I could not gather the information needed to answer right now. Please try again in a moment."
	}

	return b.String()
}

// splitInvocations separates usable answers from recorded failures
func splitInvocations(invocations []chat.AgentInvocation) (succeeded, failed []chat.AgentInvocation) {
	for _, inv := range invocations {
		if inv.Succeeded() {
			succeeded = append(succeeded, inv)
		} else {
			failed = append(failed, inv)
		}
	}
	return succeeded, failed
}
