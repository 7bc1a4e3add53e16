package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// DataAnalyst answers spending, breakdown, and trend questions from the
// user's aggregated financial records.
type DataAnalyst struct {
	repo finance.Repository
	ai   ai.ChatCompleter
	log  *logger.Logger
}

// NewDataAnalyst creates the data-analysis agent
func NewDataAnalyst(repo finance.Repository, completer ai.ChatCompleter) *DataAnalyst {
	return &DataAnalyst{
		repo: repo,
		ai:   completer,
		log:  logger.Get().With("component", "agent", "kind", KindDataAnalysis),
	}
}

func (a *DataAnalyst) Kind() Kind { return KindDataAnalysis }

// Answer resolves the sub-question against current and previous month
// aggregates, then phrases the findings with the LLM.
func (a *DataAnalyst) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) Result {
	now := time.Now().UTC()

	current, err := a.repo.GetAggregates(ctx, bundle.UserID, now)
	if err != nil {
		a.log.Warnf("Aggregates lookup failed: %v", err)
		return classify(err)
	}

	// Previous month gives the model trend context; its absence is fine
	var previous *finance.Aggregates
	if prev, err := a.repo.GetAggregates(ctx, bundle.UserID, now.AddDate(0, -1, 0)); err == nil {
		previous = prev
	}

	var data strings.Builder
	fmt.Fprintf(&data, "Current month (%s): total spent %s %s, income %s %s, savings balance %s %s\n",
		current.Month.Format("2006-01"),
		current.TotalSpent.StringFixed(2), bundle.Currency,
		current.TotalIncome.StringFixed(2), bundle.Currency,
		current.SavingsBalance.StringFixed(2), bundle.Currency,
	)
	for _, c := range current.ByCategory {
		fmt.Fprintf(&data, "- %s: %s %s\n", c.Category, c.Amount.StringFixed(2), bundle.Currency)
	}
	if previous != nil {
		fmt.Fprintf(&data, "Previous month (%s): total spent %s %s, income %s %s\n",
			previous.Month.Format("2006-01"),
			previous.TotalSpent.StringFixed(2), bundle.Currency,
			previous.TotalIncome.StringFixed(2), bundle.Currency,
		)
	}

	system := fmt.Sprintf(`You are a financial data analyst for a personal finance assistant.
Answer strictly from the aggregated records below. Use %s for all amounts.
If the records do not cover the question, say so plainly.

%s`, bundle.Currency, data.String())

	completion, err := a.ai.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: question},
	}, nil)
	if err != nil {
		a.log.Warnf("Analysis completion failed: %v", err)
		return classify(err)
	}

	if strings.TrimSpace(completion.Content) == "" {
		return Failed(FailureNoData, "the analysis produced no answer")
	}

	return Success(completion.Content)
}
