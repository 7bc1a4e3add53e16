package orchestrator

import (
	"context"
	"time"

	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/finance"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Assembler builds the read-only context bundle handed to the planner
// and to every invoked agent.
type Assembler struct {
	finance       *finance.Service
	historyWindow int
	log           *logger.Logger
}

// NewAssembler creates a context assembler. historyWindow bounds how
// many trailing session messages enter the bundle.
func NewAssembler(financeService *finance.Service, historyWindow int) *Assembler {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &Assembler{
		finance:       financeService,
		historyWindow: historyWindow,
		log:           logger.Get().With("component", "context_assembler"),
	}
}

// Assemble builds the bundle for one turn. Fails only with
// ErrContextUnavailable, in which case the turn aborts before any agent
// is invoked.
func (a *Assembler) Assemble(ctx context.Context, userID string, history []chat.Message) (*chat.ContextBundle, error) {
	digest, err := a.finance.BuildDigest(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrContextUnavailable, "assemble context for %s: %v", userID, err)
	}

	if len(history) > a.historyWindow {
		history = history[len(history)-a.historyWindow:]
	}

	currency := digest.Profile.Currency
	if currency == "" {
		currency = "SEK"
	}

	bundle := &chat.ContextBundle{
		UserID:      userID,
		UserName:    digest.Profile.FullName,
		Currency:    currency,
		Timezone:    digest.Profile.Timezone,
		Digest:      digest.Summary,
		History:     history,
		AssembledAt: time.Now().UTC(),
	}

	a.log.Debugw("Assembled context bundle", "user", userID, "history", len(history))
	return bundle, nil
}
