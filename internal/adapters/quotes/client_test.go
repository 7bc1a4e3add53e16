package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
)

func TestGetQuoteParsesCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "s=aapl.us")
		_, _ = w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\naapl.us,2026-08-28,22:00:00,230.1,233.4,229.8,232.50,41250000\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	quote, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "232.50", quote.Price.StringFixed(2))
	assert.Equal(t, "USD", quote.Currency)
}

func TestGetQuoteNoDataMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Symbol,Date,Time,Open,High,Low,Close,Volume\nxxxxx.us,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.GetQuote(context.Background(), "XXXXX")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoData))
}

func TestGetQuoteUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUpstreamUnavailable))
}

func TestGetQuoteEmptySymbol(t *testing.T) {
	client := NewClient("http://example.invalid", time.Second)
	_, err := client.GetQuote(context.Background(), "  ")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
