package stats

import (
	"context"

	"stocks-social/apperr"
	"stocks-social/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Matrix is a dense covariance matrix. Values[i][j] is nil where no data was
// available for the pair.
type Matrix struct {
	Symbols   []string     `json:"symbols"`
	StartDate models.Date  `json:"start_date"`
	EndDate   models.Date  `json:"end_date"`
	Values    [][]*float64 `json:"values"`
}

// CovarianceMatrix computes covariance for every ordered pair of symbols,
// with variance on the diagonal. Cells are computed concurrently, bounded
// by the configured worker count.
func (e *Engine) CovarianceMatrix(ctx context.Context, symbols []string, start, end models.Date) (Matrix, error) {
	if len(symbols) == 0 {
		return Matrix{}, apperr.New(apperr.KindInvalidArgument, "at least one symbol is required")
	}
	if len(symbols) > e.opts.MaxMatrixSymbols {
		return Matrix{}, apperr.New(apperr.KindInvalidArgument,
			"covariance matrix is limited to %d symbols, got %d", e.opts.MaxMatrixSymbols, len(symbols))
	}
	if err := validateRange(start, end); err != nil {
		return Matrix{}, err
	}

	n := len(symbols)
	values := make([][]*float64, n)
	for i := range values {
		values[i] = make([]*float64, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.Go(func() error {
				res, err := e.PairwiseStatistic(gctx, Covariance, symbols[i], symbols[j], start, end)
				if err != nil {
					return err
				}
				values[i][j] = res.Value
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return Matrix{}, err
	}

	e.log.Debug().Strs("symbols", symbols).Str("start", start.String()).Str("end", end.String()).Msg("Covariance matrix computed")
	return Matrix{Symbols: symbols, StartDate: start, EndDate: end, Values: values}, nil
}

// StockListMatrix computes the covariance matrix of a stock list's symbols.
// The actor must be able to read the list.
func (e *Engine) StockListMatrix(ctx context.Context, actor, stockListID uint, start, end models.Date) (Matrix, error) {
	if err := e.guard.RequireReadableStockList(ctx, actor, stockListID); err != nil {
		return Matrix{}, err
	}

	var symbols []string
	err := e.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.StockListEntry{}).
			Where("stock_list_id = ?", stockListID).
			Order("symbol").
			Pluck("symbol", &symbols).Error
	})
	if err != nil {
		return Matrix{}, err
	}
	if len(symbols) == 0 {
		return Matrix{}, apperr.New(apperr.KindInvalidArgument, "stock list %d has no stocks", stockListID)
	}
	return e.CovarianceMatrix(ctx, symbols, start, end)
}

// PortfolioMatrix computes the covariance matrix of a portfolio's holdings.
func (e *Engine) PortfolioMatrix(ctx context.Context, actor, portfolioID uint, start, end models.Date) (Matrix, error) {
	if err := e.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return Matrix{}, err
	}

	var symbols []string
	err := e.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Holding{}).
			Where("portfolio_id = ?", portfolioID).
			Order("symbol").
			Pluck("symbol", &symbols).Error
	})
	if err != nil {
		return Matrix{}, err
	}
	if len(symbols) == 0 {
		return Matrix{}, apperr.New(apperr.KindInvalidArgument, "portfolio %d has no holdings", portfolioID)
	}
	return e.CovarianceMatrix(ctx, symbols, start, end)
}
