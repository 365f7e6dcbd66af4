// Package marketdata fetches quotes and daily history from Alpha Vantage for
// the administrative price refresh and import endpoints.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"stocks-social/apperr"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://www.alphavantage.co/query"

type response struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
	TimeSeriesDaily map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// Client is an Alpha Vantage HTTP client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey, baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "alphavantage").Logger(),
	}
}

func (c *Client) fetch(ctx context.Context, params url.Values) (*response, error) {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "market data provider unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, err, "market data provider unreachable")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindStoreUnavailable, "market data provider returned %d", resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperr.Wrap(apperr.KindOperationFailed, err, "failed to parse market data")
	}
	switch {
	case out.ErrorMessage != "":
		return nil, apperr.New(apperr.KindInvalidSymbol, "market data provider rejected %s", params.Get("symbol"))
	case out.Note != "" || out.Information != "":
		c.log.Warn().Str("note", out.Note+out.Information).Msg("Alpha Vantage throttled request")
		return nil, apperr.New(apperr.KindStoreUnavailable, "market data provider rate limit reached, try again later")
	}
	return &out, nil
}

// Quote returns the latest traded price of symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	out, err := c.fetch(ctx, url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {symbol}})
	if err != nil {
		return decimal.Zero, err
	}
	if out.GlobalQuote.Price == "" {
		return decimal.Zero, apperr.New(apperr.KindInvalidSymbol, "no quote found for %s", symbol)
	}
	price, err := decimal.NewFromString(out.GlobalQuote.Price)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindOperationFailed, err, "failed to parse quote")
	}
	return price, nil
}

// DailyHistory returns the daily OHLCV rows of symbol in date order. Rows
// that fail to parse are skipped.
func (c *Client) DailyHistory(ctx context.Context, symbol string, full bool) ([]models.HistoricalPrice, error) {
	size := "compact"
	if full {
		size = "full"
	}
	out, err := c.fetch(ctx, url.Values{"function": {"TIME_SERIES_DAILY"}, "symbol": {symbol}, "outputsize": {size}})
	if err != nil {
		return nil, err
	}
	if len(out.TimeSeriesDaily) == 0 {
		return nil, apperr.New(apperr.KindNoHistoricalData, "no daily history found for %s", symbol)
	}

	rows := make([]models.HistoricalPrice, 0, len(out.TimeSeriesDaily))
	for day, bar := range out.TimeSeriesDaily {
		row, err := parseBar(symbol, day, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			c.log.Debug().Err(err).Str("symbol", symbol).Str("date", day).Msg("Skipping malformed bar")
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}

func parseBar(symbol, day, o, h, l, c, volume string) (models.HistoricalPrice, error) {
	date, err := models.ParseDate(day)
	if err != nil {
		return models.HistoricalPrice{}, err
	}
	row := models.HistoricalPrice{Symbol: symbol, Date: date}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&row.Open, o}, {&row.High, h}, {&row.Low, l}, {&row.Close, c}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return models.HistoricalPrice{}, fmt.Errorf("parse price %q: %w", f.src, err)
		}
	}
	if row.Volume, err = strconv.ParseInt(volume, 10, 64); err != nil {
		return models.HistoricalPrice{}, fmt.Errorf("parse volume %q: %w", volume, err)
	}
	return row, nil
}
