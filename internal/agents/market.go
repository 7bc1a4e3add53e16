package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kamra34/agentic-fin-tracker/internal/adapters/ai"
	"github.com/kamra34/agentic-fin-tracker/internal/adapters/quotes"
	"github.com/kamra34/agentic-fin-tracker/internal/domain/chat"
	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// tickerPattern matches candidate ticker symbols in a question
var tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)

// tickerStopwords are uppercase words that look like tickers but are not
var tickerStopwords = map[string]bool{
	"I": true, "A": true, "THE": true, "AND": true, "OR": true, "IN": true,
	"TO": true, "OF": true, "IS": true, "FOR": true, "USD": true, "SEK": true,
	"EUR": true, "ETF": true, "PE": true, "AI": true,
}

// wellKnown maps common company names to tickers so questions phrased in
// prose still resolve without a model round-trip
var wellKnown = map[string]string{
	"apple": "AAPL", "tesla": "TSLA", "microsoft": "MSFT", "google": "GOOGL",
	"alphabet": "GOOGL", "amazon": "AMZN", "nvidia": "NVDA", "meta": "META",
}

// MarketAgent answers live market price questions via the quote source.
type MarketAgent struct {
	quotes *quotes.Client
	ai     ai.ChatCompleter
	log    *logger.Logger
}

// NewMarketAgent creates the market-lookup agent
func NewMarketAgent(client *quotes.Client, completer ai.ChatCompleter) *MarketAgent {
	return &MarketAgent{
		quotes: client,
		ai:     completer,
		log:    logger.Get().With("component", "agent", "kind", KindMarketLookup),
	}
}

func (a *MarketAgent) Kind() Kind { return KindMarketLookup }

// Answer extracts symbols from the question, fetches quotes for each,
// and phrases the result. Several symbols in one question are handled in
// a single invocation.
func (a *MarketAgent) Answer(ctx context.Context, question string, bundle *chat.ContextBundle) Result {
	symbols := extractSymbols(question)
	if len(symbols) == 0 {
		return Failed(FailureNoData, "no ticker symbol was recognized in the question")
	}

	var lines []string
	var lastErr error
	for _, sym := range symbols {
		q, err := a.quotes.GetQuote(ctx, sym)
		if err != nil {
			a.log.Warnf("Quote lookup failed for %s: %v", sym, err)
			lastErr = err
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s %s (as of %s)",
			q.Symbol, q.Price.StringFixed(2), q.Currency, q.AsOf.Format("2006-01-02 15:04 MST")))
	}

	if len(lines) == 0 {
		if lastErr != nil {
			return classify(lastErr)
		}
		return Failed(FailureNoData, "no quotes were available")
	}

	raw := strings.Join(lines, "\n")

	// Phrasing is best-effort; the raw quotes already answer the question
	completion, err := a.ai.Complete(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: "You are a market data specialist. Restate the quotes below as a short, clear answer to the user's question. Do not invent prices. The user's preferred currency is " + bundle.Currency + "."},
		{Role: ai.RoleUser, Content: question + "\n\nQuotes:\n" + raw},
	}, nil)
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		if err != nil && errors.Is(err, context.Canceled) {
			return classify(err)
		}
		return Success(raw)
	}

	return Success(completion.Content)
}

// extractSymbols finds ticker candidates in the question text. Output
// order is deterministic for a given question.
func extractSymbols(question string) []string {
	seen := make(map[string]bool)
	var symbols []string

	names := make([]string, 0, len(wellKnown))
	for name := range wellKnown {
		names = append(names, name)
	}
	sort.Strings(names)

	lowered := strings.ToLower(question)
	for _, name := range names {
		ticker := wellKnown[name]
		if strings.Contains(lowered, name) && !seen[ticker] {
			seen[ticker] = true
			symbols = append(symbols, ticker)
		}
	}

	for _, m := range tickerPattern.FindAllString(question, -1) {
		if tickerStopwords[m] || seen[m] {
			continue
		}
		seen[m] = true
		symbols = append(symbols, m)
	}

	return symbols
}
