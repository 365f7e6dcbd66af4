// Package handlers translates HTTP requests into ledger, price, statistics
// and review operations.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/ledger"
	"stocks-social/models"
	"stocks-social/prices"
	"stocks-social/reviews"
	"stocks-social/stats"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TokenStore remembers issued refresh tokens. cache.Redis implements it.
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, token string, userID uint, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, token string) (uint, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// PriceFeed fetches market data from an external provider.
// marketdata.Client implements it.
type PriceFeed interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
	DailyHistory(ctx context.Context, symbol string, full bool) ([]models.HistoricalPrice, error)
}

// Deps are the services a Handler dispatches to. Tokens and Feed are
// optional.
type Deps struct {
	Store     *database.Store
	Ledger    *ledger.Service
	Prices    *prices.Store
	Stats     *stats.Engine
	Reviews   *reviews.Service
	Tokens    TokenStore
	Feed      PriceFeed
	JWTSecret string
	Log       zerolog.Logger
}

// Handler holds the gin handlers.
type Handler struct {
	store     *database.Store
	ledger    *ledger.Service
	prices    *prices.Store
	stats     *stats.Engine
	reviews   *reviews.Service
	tokens    TokenStore
	feed      PriceFeed
	jwtSecret string
	log       zerolog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		store:     d.Store,
		ledger:    d.Ledger,
		prices:    d.Prices,
		stats:     d.Stats,
		reviews:   d.Reviews,
		tokens:    d.Tokens,
		feed:      d.Feed,
		jwtSecret: d.JWTSecret,
		log:       d.Log.With().Str("component", "http").Logger(),
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotOwned:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientFunds, apperr.KindInsufficientShares, apperr.KindDuplicateHistoricalEntry:
		return http.StatusConflict
	case apperr.KindInvalidAmount, apperr.KindInvalidSymbol, apperr.KindInvalidArgument, apperr.KindInvalidTimestamp:
		return http.StatusBadRequest
	case apperr.KindNoHistoricalData, apperr.KindNoReferenceData:
		return http.StatusUnprocessableEntity
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": {"kind", "message"}}. Errors without
// a kind are logged and reported as OperationFailed.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unclassified error")
		appErr = apperr.Wrap(apperr.KindOperationFailed, err, "operation failed")
	}
	_ = c.Error(err)

	msg := appErr.Message
	if msg == "" {
		msg = string(appErr.Kind)
	}
	c.AbortWithStatusJSON(statusFor(appErr.Kind), gin.H{
		"error": gin.H{"kind": appErr.Kind, "message": msg},
	})
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperr.New(apperr.KindInvalidArgument, "invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, apperr.New(apperr.KindInvalidArgument, "invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(id), true
}

// queryDate parses a YYYY-MM-DD query parameter, using fallback when absent.
func (h *Handler) queryDate(c *gin.Context, name string, fallback *models.Date) (models.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		if fallback != nil {
			return *fallback, true
		}
		h.respondError(c, apperr.New(apperr.KindInvalidTimestamp, "query parameter %s is required", name))
		return models.Date{}, false
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		h.respondError(c, apperr.New(apperr.KindInvalidTimestamp, "%s: %v", name, err))
		return models.Date{}, false
	}
	return d, true
}

// dateRange reads start and end, defaulting end to today.
func (h *Handler) dateRange(c *gin.Context) (start, end models.Date, ok bool) {
	if start, ok = h.queryDate(c, "start", nil); !ok {
		return
	}
	today := h.prices.Today()
	end, ok = h.queryDate(c, "end", &today)
	return
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.store.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "database unreachable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
