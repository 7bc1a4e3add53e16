package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// KnowledgeAgent answers general financial knowledge and comparison
// questions: products, account types, institutions, terminology.
type KnowledgeAgent struct {
	ai  ai.ChatCompleter
	log *logger.Logger
}

// NewKnowledgeAgent creates the general-knowledge agent
func NewKnowledgeAgent(completer ai.ChatCompleter) *KnowledgeAgent {
	return &KnowledgeAgent{
		ai:  completer,
		log: logger.Get().With("component", "agent", "kind", KindGeneralKnowledge),
	}
}

func (a *KnowledgeAgent) Kind() Kind { return KindGeneralKnowledge }

func (a *KnowledgeAgent) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) Result {
	country := "International"
	if bundle.Currency == "SEK" {
		country = "Sweden"
	}

	system := fmt.Sprintf(`You are a financial information specialist.
You explain financial products, account types (ISK, KF, funds), fees,
and institutions in simple terms, with balanced comparisons.
User's preferred currency: %s. Country focus: %s.
If you are not confident about a current rate or fee, say so rather than guessing.`,
		bundle.Currency, country)

	completion, err := a.ai.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: question},
	}, nil)
	if err != nil {
		a.log.Warnf("Knowledge completion failed: %v", err)
		return classify(err)
	}

	if strings.TrimSpace(completion.Content) == "" {
		return Failed(FailureNoData, "no answer could be produced")
	}

	return Success(completion.Content)
}
