package quotes

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Quote is a point-in-time market price for a symbol
type Quote struct {
	Symbol   string
	Price    decimal.Decimal
	Currency string
	AsOf     time.Time
}

// Client fetches market quotes from the stooq CSV endpoint.
// Read-only; safe to share across turns.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a new quote client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.Get().With("component", "quote_client"),
	}
}

// GetQuote fetches the latest quote for a ticker symbol.
// US equities are quoted in USD; the caller converts for display.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.TrimSpace(strings.ToLower(symbol))
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}

	// Stooq expects market-suffixed symbols; default to US listings
	if !strings.Contains(symbol, ".") {
		symbol += ".us"
	}

	url := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create quote request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrapf(errors.ErrTimeout, "quote lookup for %s", symbol)
		}
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "quote lookup for %s: %v", symbol, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "quote endpoint returned %d", resp.StatusCode)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse quote csv")
	}

	// Header row plus one data row: Symbol,Date,Time,Open,High,Low,Close,Volume
	if len(records) < 2 || len(records[1]) < 7 {
		return nil, errors.Wrapf(errors.ErrNoData, "no quote rows for %s", symbol)
	}

	row := records[1]
	closePrice := row[6]
	if closePrice == "" || closePrice == "N/D" {
		return nil, errors.Wrapf(errors.ErrNoData, "no price available for %s", symbol)
	}

	price, err := decimal.NewFromString(closePrice)
	if err != nil {
		return nil, errors.Wrapf(err, "parse price %q", closePrice)
	}

	quote := &Quote{
		Symbol:   strings.ToUpper(strings.TrimSuffix(symbol, ".us")),
		Price:    price,
		Currency: "USD",
		AsOf:     time.Now().UTC(),
	}

	c.log.Debugw("Fetched quote", "symbol", quote.Symbol, "price", quote.Price.String())
	return quote, nil
}
