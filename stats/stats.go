// Package stats computes variance, covariance and beta over historical
// closing prices and caches every result by symbol pair and date range.
package stats

import (
	"context"
	"fmt"
	"math"
	"strings"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/guard"
	"stocks-social/models"
	"stocks-social/prices"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind selects the statistic to compute.
type Kind string

const (
	Variance   Kind = "variance"
	Covariance Kind = "covariance"
	Beta       Kind = "beta"
)

// ParseKind validates a statistic name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case Variance, Covariance, Beta:
		return k, nil
	default:
		return "", apperr.New(apperr.KindInvalidArgument, "unknown statistic %q, expected variance, covariance or beta", s)
	}
}

// Result is one computed statistic. A nil Value means fewer than two data
// points were available, which is a valid outcome rather than an error.
type Result struct {
	Kind      Kind        `json:"kind"`
	Symbols   []string    `json:"symbols"`
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
	Value     *float64    `json:"value"`
	NoData    bool        `json:"no_data"`
	Cached    bool        `json:"cached"`
}

// ResultCache is an optional fast layer consulted before the cache table.
type ResultCache interface {
	GetStat(ctx context.Context, key string) (*float64, bool, error)
	SetStat(ctx context.Context, key string, value *float64) error
}

// Options configures an Engine.
type Options struct {
	MarketIndex      string
	MaxMatrixSymbols int
	Workers          int
	Cache            ResultCache
}

// Engine computes statistics over the price store.
type Engine struct {
	store  *database.Store
	prices *prices.Store
	guard  *guard.Guard
	opts   Options
	log    zerolog.Logger
}

func NewEngine(store *database.Store, priceStore *prices.Store, g *guard.Guard, opts Options, log zerolog.Logger) *Engine {
	if opts.MarketIndex == "" {
		opts.MarketIndex = "SPY"
	}
	if opts.MaxMatrixSymbols < 1 {
		opts.MaxMatrixSymbols = 25
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		store:  store,
		prices: priceStore,
		guard:  g,
		opts:   opts,
		log:    log.With().Str("component", "stats").Logger(),
	}
}

// cacheKey identifies a statistic. Covariance pairs are sorted so (A,B) and
// (B,A) share an entry; beta keeps the index as its second symbol.
type cacheKey struct {
	kind  Kind
	a, b  string
	start models.Date
	end   models.Date
}

func newCacheKey(kind Kind, a, b string, start, end models.Date) cacheKey {
	if kind == Covariance && b < a {
		a, b = b, a
	}
	return cacheKey{kind: kind, a: a, b: b, start: start, end: end}
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", k.kind, k.a, k.b, k.start, k.end)
}

// PairwiseStatistic returns variance(a), covariance(a, b) or beta(a) over
// [start, end]. Covariance of a symbol with itself is its variance. b is
// ignored for variance and beta.
func (e *Engine) PairwiseStatistic(ctx context.Context, kind Kind, a, b string, start, end models.Date) (Result, error) {
	if err := validateRange(start, end); err != nil {
		return Result{}, err
	}

	switch kind {
	case Variance:
		b = a
	case Covariance:
		if a == b {
			kind = Variance
		}
	case Beta:
		b = e.opts.MarketIndex
	default:
		return Result{}, apperr.New(apperr.KindInvalidArgument, "unknown statistic %q", kind)
	}

	for _, sym := range uniq(a, b) {
		if err := e.requireKnownSymbol(ctx, sym, kind == Beta && sym == e.opts.MarketIndex && sym != a); err != nil {
			return Result{}, err
		}
	}

	key := newCacheKey(kind, a, b, start, end)
	res := Result{Kind: kind, Symbols: uniq(key.a, key.b), StartDate: start, EndDate: end}

	// A range reaching today or later can still gain rows, so it is
	// computed on every request and never stored.
	closed := end.Before(e.prices.Today())

	var (
		value  *float64
		cached bool
		err    error
	)
	if closed {
		if value, cached, err = e.lookup(ctx, key); err != nil {
			return Result{}, err
		}
	}
	if !cached {
		value, err = e.compute(ctx, key)
		if err != nil {
			return Result{}, err
		}
		if closed {
			if err := e.persist(ctx, key, value); err != nil {
				return Result{}, err
			}
		}
	}

	res.Value = value
	res.NoData = value == nil
	res.Cached = cached
	return res, nil
}

func validateRange(start, end models.Date) error {
	if start.IsZero() || end.IsZero() {
		return apperr.New(apperr.KindInvalidTimestamp, "start and end dates are required")
	}
	if end.Before(start) {
		return apperr.New(apperr.KindInvalidTimestamp, "end date %s is before start date %s", end, start)
	}
	return nil
}

func uniq(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

// requireKnownSymbol fails with InvalidSymbol when sym has no historical
// rows at all. The market index is checked later against the requested
// range so that its absence surfaces as NoReferenceData.
func (e *Engine) requireKnownSymbol(ctx context.Context, sym string, isReference bool) error {
	if err := prices.ValidateSymbol(sym); err != nil {
		return err
	}
	if isReference {
		return nil
	}
	ok, err := e.prices.HasHistory(ctx, sym)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindInvalidSymbol, "unknown symbol %s: no historical data", sym)
	}
	return nil
}

func (e *Engine) lookup(ctx context.Context, key cacheKey) (*float64, bool, error) {
	if e.opts.Cache != nil {
		v, ok, err := e.opts.Cache.GetStat(ctx, key.String())
		if err != nil {
			e.log.Warn().Err(err).Str("key", key.String()).Msg("Result cache read failed")
		} else if ok {
			return v, true, nil
		}
	}

	var rows []models.StatCacheEntry
	err := e.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("kind = ? AND symbol_a = ? AND symbol_b = ? AND start_date = ? AND end_date = ?",
			string(key.kind), key.a, key.b, key.start, key.end).
			Limit(1).Find(&rows).Error
	})
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}

	e.fill(ctx, key, rows[0].Value)
	return rows[0].Value, true, nil
}

func (e *Engine) persist(ctx context.Context, key cacheKey, value *float64) error {
	entry := models.StatCacheEntry{
		Kind:      string(key.kind),
		SymbolA:   key.a,
		SymbolB:   key.b,
		StartDate: key.start,
		EndDate:   key.end,
		Value:     value,
	}
	err := e.store.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	})
	if err != nil {
		return err
	}

	e.fill(ctx, key, value)
	return nil
}

func (e *Engine) fill(ctx context.Context, key cacheKey, value *float64) {
	if e.opts.Cache == nil {
		return
	}
	if err := e.opts.Cache.SetStat(ctx, key.String(), value); err != nil {
		e.log.Warn().Err(err).Str("key", key.String()).Msg("Result cache write failed")
	}
}

func (e *Engine) compute(ctx context.Context, key cacheKey) (*float64, error) {
	switch key.kind {
	case Variance:
		closes, err := e.prices.Closes(ctx, key.a, key.start, key.end)
		if err != nil {
			return nil, err
		}
		return sampleVariance(closes), nil

	case Covariance:
		xs, ys, err := e.prices.PairedCloses(ctx, key.a, key.b, key.start, key.end)
		if err != nil {
			return nil, err
		}
		return sampleCovariance(xs, ys), nil

	case Beta:
		index, err := e.prices.Closes(ctx, key.b, key.start, key.end)
		if err != nil {
			return nil, err
		}
		if len(index) == 0 {
			return nil, apperr.New(apperr.KindNoReferenceData,
				"no %s reference data between %s and %s", key.b, key.start, key.end)
		}
		xs, ys, err := e.prices.PairedCloses(ctx, key.a, key.b, key.start, key.end)
		if err != nil {
			return nil, err
		}
		cov := sampleCovariance(xs, ys)
		variance := sampleVariance(index)
		if cov == nil || variance == nil || *variance == 0 {
			return nil, nil
		}
		beta := *cov / *variance
		return &beta, nil
	}
	return nil, fmt.Errorf("unsupported statistic %q", key.kind)
}

func sampleVariance(xs []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	return finite(stat.Variance(xs, nil))
}

func sampleCovariance(xs, ys []float64) *float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return nil
	}
	return finite(stat.Covariance(xs, ys, nil))
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
