package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"stocks-social/apperr"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", srv.URL, zerolog.Nop())
}

func TestQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "189.2500"}}`))
	})

	price, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "189.25", price.String())
}

func TestQuoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"empty quote", http.StatusOK, `{"Global Quote": {}}`, apperr.ErrInvalidSymbol},
		{"provider error", http.StatusOK, `{"Error Message": "Invalid API call."}`, apperr.ErrInvalidSymbol},
		{"throttled", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage!"}`, apperr.ErrStoreUnavailable},
		{"bad status", http.StatusBadGateway, `oops`, apperr.ErrStoreUnavailable},
		{"bad json", http.StatusOK, `not json`, apperr.ErrOperationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Quote(context.Background(), "AAPL")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDailyHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TIME_SERIES_DAILY", r.URL.Query().Get("function"))
		assert.Equal(t, "compact", r.URL.Query().Get("outputsize"))
		_, _ = w.Write([]byte(`{
			"Time Series (Daily)": {
				"2024-01-03": {"1. open": "11", "2. high": "12", "3. low": "10", "4. close": "11.5", "5. volume": "300"},
				"2024-01-02": {"1. open": "10", "2. high": "11", "3. low": "9", "4. close": "10.5", "5. volume": "200"},
				"2024-01-04": {"1. open": "x", "2. high": "12", "3. low": "10", "4. close": "11", "5. volume": "1"}
			}
		}`))
	})

	rows, err := c.DailyHistory(context.Background(), "AAPL", false)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-02", rows[0].Date.String())
	assert.Equal(t, "10.5", rows[0].Close.String())
	assert.Equal(t, int64(200), rows[0].Volume)
	assert.Equal(t, "AAPL", rows[1].Symbol)
}

func TestDailyHistoryEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.DailyHistory(context.Background(), "AAPL", true)
	assert.ErrorIs(t, err, apperr.ErrNoHistoricalData)
}
