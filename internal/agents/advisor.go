package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Advisor answers budget-health, savings, and recommendation questions
// grounded on the user's financial digest.
type Advisor struct {
	ai  ai.ChatCompleter
	log *logger.Logger
}

// NewAdvisor creates the advisory agent
func NewAdvisor(completer ai.ChatCompleter) *Advisor {
	return &Advisor{
		ai:  completer,
		log: logger.Get().With("component", "agent", "kind", KindAdvisory),
	}
}

func (a *Advisor) Kind() Kind { return KindAdvisory }

func (a *Advisor) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) Result {
	system := fmt.Sprintf(`You are a personal financial advisor.
Give practical, specific advice grounded on the user's situation below.
Use %s for all amounts. Recommend concrete next steps, not generic tips.

%s`, bundle.Currency, bundle.Digest)

	completion, err := a.ai.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: question},
	}, nil)
	if err != nil {
		a.log.Warnf("Advice completion failed: %v", err)
		return classify(err)
	}

	if strings.TrimSpace(completion.Content) == "" {
		return Failed(FailureNoData, "no advice could be produced")
	}

	return Success(completion.Content)
}
