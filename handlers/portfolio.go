package handlers

import (
	"net/http"
	"strings"

	"stocks-social/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PortfolioInput struct {
	Name string          `json:"name"`
	Cash decimal.Decimal `json:"cash"`
}

type TradeInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity"`
}

type AmountInput struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferInput struct {
	From   uint            `json:"from" binding:"required"`
	To     uint            `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) CreatePortfolio(c *gin.Context) {
	var input PortfolioInput
	if !h.bind(c, &input) {
		return
	}

	p, err := h.ledger.CreatePortfolio(c.Request.Context(), middleware.Actor(c), input.Name, input.Cash)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListPortfolios(c *gin.Context) {
	portfolios, err := h.ledger.ListPortfolios(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolios)
}

// GetPortfolio returns the portfolio valued at current prices.
func (h *Handler) GetPortfolio(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}

	v, err := h.ledger.Valuation(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) Trades(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}

	trades, err := h.ledger.Trades(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, true)
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, false)
}

func (h *Handler) trade(c *gin.Context, buy bool) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input TradeInput
	if !h.bind(c, &input) {
		return
	}

	op := h.ledger.Sell
	if buy {
		op = h.ledger.Buy
	}
	res, err := op(c.Request.Context(), middleware.Actor(c), id, strings.ToUpper(input.Symbol), input.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Deposit(c *gin.Context) {
	h.adjustCash(c, false)
}

func (h *Handler) Withdraw(c *gin.Context) {
	h.adjustCash(c, true)
}

func (h *Handler) adjustCash(c *gin.Context, withdraw bool) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input AmountInput
	if !h.bind(c, &input) {
		return
	}

	op := h.ledger.Deposit
	if withdraw {
		op = h.ledger.Withdraw
	}
	cash, err := op(c.Request.Context(), middleware.Actor(c), id, input.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolio_id": id, "cash": cash})
}

func (h *Handler) Transfer(c *gin.Context) {
	var input TransferInput
	if !h.bind(c, &input) {
		return
	}

	res, err := h.ledger.Transfer(c.Request.Context(), middleware.Actor(c), input.From, input.To, input.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PortfolioCovariance returns the covariance matrix of the held symbols.
func (h *Handler) PortfolioCovariance(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	m, err := h.stats.PortfolioMatrix(c.Request.Context(), middleware.Actor(c), id, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
