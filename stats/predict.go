package stats

import (
	"context"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/prices"

	"gonum.org/v1/gonum/stat"
)

// Prediction is a naive linear extrapolation of closing prices. It is
// illustrative only.
type Prediction struct {
	Symbol       string      `json:"symbol"`
	TargetDate   models.Date `json:"target_date"`
	Price        float64     `json:"price"`
	Slope        float64     `json:"slope"`
	Intercept    float64     `json:"intercept"`
	Observations int         `json:"observations"`
}

// PredictFuturePrice fits an ordinary least squares line of close against
// days since the Unix epoch over all history of symbol and evaluates it at
// target.
func (e *Engine) PredictFuturePrice(ctx context.Context, symbol string, target models.Date) (Prediction, error) {
	if err := prices.ValidateSymbol(symbol); err != nil {
		return Prediction{}, err
	}
	if target.IsZero() {
		return Prediction{}, apperr.New(apperr.KindInvalidTimestamp, "target date is required")
	}

	days, closes, err := e.prices.FullHistory(ctx, symbol)
	if err != nil {
		return Prediction{}, err
	}
	if len(closes) == 0 {
		return Prediction{}, apperr.New(apperr.KindNoHistoricalData, "no historical data for %s", symbol)
	}

	p := Prediction{Symbol: symbol, TargetDate: target, Observations: len(closes)}
	if len(closes) == 1 {
		p.Intercept = closes[0]
		p.Price = closes[0]
		return p, nil
	}

	xs := make([]float64, len(days))
	for i, d := range days {
		xs[i] = float64(d.DaysSinceEpoch())
	}
	p.Intercept, p.Slope = stat.LinearRegression(xs, closes, nil, false)
	p.Price = p.Slope*float64(target.DaysSinceEpoch()) + p.Intercept
	return p, nil
}

// PriceSeries returns the price history of symbol since the given day,
// ending with the current price.
func (e *Engine) PriceSeries(ctx context.Context, symbol string, since models.Date) ([]prices.PricePoint, error) {
	return e.prices.Series(ctx, symbol, since)
}
