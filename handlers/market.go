package handlers

import (
	"net/http"
	"strings"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/stats"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type StockPriceInput struct {
	Symbol string          `json:"symbol" binding:"required"`
	Price  decimal.Decimal `json:"price"`
}

type MatrixInput struct {
	Symbols []string    `json:"symbols" binding:"required"`
	Start   models.Date `json:"start"`
	End     models.Date `json:"end"`
}

func symbolParam(c *gin.Context) string {
	return strings.ToUpper(c.Param("symbol"))
}

func (h *Handler) ListStocks(c *gin.Context) {
	stocks, err := h.prices.ListStocks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (h *Handler) GetStock(c *gin.Context) {
	stock, err := h.prices.GetStock(c.Request.Context(), symbolParam(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// PriceSeries returns historical closes since the given day plus the current
// price.
func (h *Handler) PriceSeries(c *gin.Context) {
	epoch := models.NewDate(1970, 1, 1)
	since, ok := h.queryDate(c, "since", &epoch)
	if !ok {
		return
	}

	points, err := h.stats.PriceSeries(c.Request.Context(), symbolParam(c), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbolParam(c), "prices": points})
}

// Statistic computes variance, covariance (with ?other=) or beta.
func (h *Handler) Statistic(c *gin.Context) {
	kind, err := stats.ParseKind(c.DefaultQuery("kind", string(stats.Variance)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}
	other := strings.ToUpper(c.Query("other"))
	if kind == stats.Covariance && other == "" {
		h.respondError(c, apperr.New(apperr.KindInvalidArgument, "covariance needs a second symbol in other"))
		return
	}

	res, err := h.stats.PairwiseStatistic(c.Request.Context(), kind, symbolParam(c), other, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Matrix(c *gin.Context) {
	var input MatrixInput
	if !h.bind(c, &input) {
		return
	}
	if input.End.IsZero() {
		input.End = h.prices.Today()
	}
	for i, s := range input.Symbols {
		input.Symbols[i] = strings.ToUpper(s)
	}

	m, err := h.stats.CovarianceMatrix(c.Request.Context(), input.Symbols, input.Start, input.End)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) Prediction(c *gin.Context) {
	target, ok := h.queryDate(c, "date", nil)
	if !ok {
		return
	}

	p, err := h.stats.PredictFuturePrice(c.Request.Context(), symbolParam(c), target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetStockPrice creates a stock or updates its current price.
func (h *Handler) SetStockPrice(c *gin.Context) {
	var input StockPriceInput
	if !h.bind(c, &input) {
		return
	}
	symbol := strings.ToUpper(input.Symbol)

	inserted, err := h.prices.SetStockPrice(c.Request.Context(), symbol, input.Price)
	if err != nil {
		h.respondError(c, err)
		return
	}
	status, msg := http.StatusOK, "Stock price updated"
	if inserted {
		status, msg = http.StatusCreated, "Stock created"
	}
	c.JSON(status, gin.H{"message": msg, "symbol": symbol, "price": input.Price})
}

func (h *Handler) InsertHistoricalPrice(c *gin.Context) {
	var input models.HistoricalPrice
	if !h.bind(c, &input) {
		return
	}
	input.Symbol = strings.ToUpper(input.Symbol)

	if err := h.prices.InsertHistoricalPrice(c.Request.Context(), input); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, input)
}

// RefreshStockPrice pulls the latest quote from the price feed.
func (h *Handler) RefreshStockPrice(c *gin.Context) {
	if h.feed == nil {
		h.respondError(c, apperr.New(apperr.KindStoreUnavailable, "no market data feed is configured"))
		return
	}
	symbol := symbolParam(c)

	price, err := h.feed.Quote(c.Request.Context(), symbol)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.prices.SetStockPrice(c.Request.Context(), symbol, price); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "price": price})
}

// ImportHistory pulls daily history from the price feed, keeping rows that
// are not already stored.
func (h *Handler) ImportHistory(c *gin.Context) {
	if h.feed == nil {
		h.respondError(c, apperr.New(apperr.KindStoreUnavailable, "no market data feed is configured"))
		return
	}
	symbol := symbolParam(c)

	rows, err := h.feed.DailyHistory(c.Request.Context(), symbol, c.Query("full") == "true")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.prices.ImportHistory(c.Request.Context(), rows)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info().Str("symbol", symbol).Int64("inserted", res.Inserted).Int64("skipped", res.Skipped).Msg("History imported")
	c.JSON(http.StatusOK, res)
}
