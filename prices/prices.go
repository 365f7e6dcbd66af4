// Package prices is the price store: current prices per symbol and the
// write-once table of daily historical prices.
package prices

import (
	"context"
	"errors"
	"sort"
	"time"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const importBatchSize = 100

// PricePoint is one observation in a price series.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// ImportResult reports the outcome of a batch history import.
type ImportResult struct {
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
}

// Store reads and writes stock prices.
type Store struct {
	store *database.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewStore(store *database.Store, log zerolog.Logger) *Store {
	return &Store{
		store: store,
		log:   log.With().Str("component", "prices").Logger(),
		now:   time.Now,
	}
}

// WithClock replaces the clock used to decide what "today" is.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Today returns the current calendar day.
func (s *Store) Today() models.Date {
	return models.DateOf(s.now())
}

// ValidateSymbol checks the 1-5 character ticker constraint.
func ValidateSymbol(symbol string) error {
	if n := len(symbol); n < 1 || n > 5 {
		return apperr.New(apperr.KindInvalidSymbol, "symbol must be within one to five characters")
	}
	return nil
}

// SetStockPrice inserts or updates the current price of symbol. It reports
// whether a new stock row was created.
func (s *Store) SetStockPrice(ctx context.Context, symbol string, price decimal.Decimal) (bool, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return false, err
	}
	if price.IsNegative() {
		return false, apperr.New(apperr.KindInvalidAmount, "price must not be negative")
	}
	if !models.FitsMoneyScale(price) {
		return false, apperr.New(apperr.KindInvalidAmount, "price must have at most %d decimal places", models.MoneyScale)
	}

	inserted := false
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Stock{Symbol: symbol, CurrVal: price, UpdatedAt: now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			inserted = true
			return nil
		}
		return tx.Model(&models.Stock{}).Where("symbol = ?", symbol).
			Updates(map[string]any{"curr_val": price, "updated_at": now}).Error
	})
	if err != nil {
		return false, err
	}

	s.log.Info().Str("symbol", symbol).Str("price", price.String()).Bool("inserted", inserted).Msg("Stock price set")
	return inserted, nil
}

// GetStock returns the current price row of symbol.
func (s *Store) GetStock(ctx context.Context, symbol string) (models.Stock, error) {
	var stock models.Stock
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("symbol = ?", symbol).Take(&stock).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return stock, apperr.New(apperr.KindInvalidSymbol, "unknown symbol %s", symbol)
	}
	return stock, err
}

// ListStocks returns every stock with its current price.
func (s *Store) ListStocks(ctx context.Context) ([]models.Stock, error) {
	var stocks []models.Stock
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Order("symbol").Find(&stocks).Error
	})
	return stocks, err
}

// CurrentPrice reads the price of symbol inside an open transaction.
func CurrentPrice(tx *gorm.DB, symbol string) (decimal.Decimal, error) {
	var stock models.Stock
	err := tx.Where("symbol = ?", symbol).Take(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperr.New(apperr.KindInvalidSymbol, "unknown symbol %s", symbol)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return stock.CurrVal, nil
}

// ValidateHistorical checks a historical row against today's date.
func ValidateHistorical(row models.HistoricalPrice, today models.Date) error {
	if err := ValidateSymbol(row.Symbol); err != nil {
		return err
	}
	if row.Open.IsNegative() || row.High.IsNegative() || row.Low.IsNegative() || row.Close.IsNegative() {
		return apperr.New(apperr.KindInvalidAmount, "prices must not be negative")
	}
	for _, p := range []decimal.Decimal{row.Open, row.High, row.Low, row.Close} {
		if !models.FitsMoneyScale(p) {
			return apperr.New(apperr.KindInvalidAmount, "prices must have at most %d decimal places", models.MoneyScale)
		}
	}
	if row.Volume < 0 {
		return apperr.New(apperr.KindInvalidAmount, "volume must not be negative")
	}
	if row.High.LessThan(row.Low) {
		return apperr.New(apperr.KindInvalidAmount, "high must not be less than low")
	}
	if row.Date.IsZero() {
		return apperr.New(apperr.KindInvalidTimestamp, "timestamp must be in the form YYYY-MM-DD")
	}
	if !row.Date.Before(today) {
		return apperr.New(apperr.KindInvalidTimestamp, "timestamp must be before today's date")
	}
	return nil
}

// InsertHistoricalPrice stores one daily row. A row for the same symbol and
// date can never be written twice.
func (s *Store) InsertHistoricalPrice(ctx context.Context, row models.HistoricalPrice) error {
	if err := ValidateHistorical(row, s.Today()); err != nil {
		return err
	}

	duplicate := apperr.New(apperr.KindDuplicateHistoricalEntry,
		"cannot alter historical data for %s on %s", row.Symbol, row.Date)

	return s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.HistoricalPrice{}).
			Where("symbol = ? AND trade_date = ?", row.Symbol, row.Date).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return duplicate
		}

		err := tx.Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicate
		}
		return err
	})
}

// ImportHistory inserts rows that pass validation, skipping invalid rows and
// dates already present.
func (s *Store) ImportHistory(ctx context.Context, rows []models.HistoricalPrice) (ImportResult, error) {
	today := s.Today()
	valid := make([]models.HistoricalPrice, 0, len(rows))
	for _, row := range rows {
		if err := ValidateHistorical(row, today); err != nil {
			s.log.Debug().Err(err).Str("symbol", row.Symbol).Str("date", row.Date.String()).Msg("Skipping history row")
			continue
		}
		valid = append(valid, row)
	}

	var res ImportResult
	if len(valid) > 0 {
		inserted, err := s.store.CreateInBatches(ctx, valid, importBatchSize, true)
		if err != nil {
			return res, err
		}
		res.Inserted = inserted
	}
	res.Skipped = int64(len(rows)) - res.Inserted
	return res, nil
}

// Series returns the historical closes of symbol on or after since followed
// by the current price, in ascending time order.
func (s *Store) Series(ctx context.Context, symbol string, since models.Date) ([]PricePoint, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}

	var (
		history []models.HistoricalPrice
		stocks  []models.Stock
	)
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		if err := db.Where("symbol = ? AND trade_date >= ?", symbol, since).
			Order("trade_date").Find(&history).Error; err != nil {
			return err
		}
		return db.Where("symbol = ?", symbol).Limit(1).Find(&stocks).Error
	})
	if err != nil {
		return nil, err
	}

	if len(stocks) == 0 {
		known, err := s.HasHistory(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, apperr.New(apperr.KindInvalidSymbol, "unknown symbol %s", symbol)
		}
	}

	points := make([]PricePoint, 0, len(history)+1)
	for _, h := range history {
		points = append(points, PricePoint{Timestamp: h.Date.Time(), Price: h.Close})
	}
	now := s.now()
	if len(stocks) == 1 && !now.Before(since.Time()) {
		points = append(points, PricePoint{Timestamp: now, Price: stocks[0].CurrVal})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// HasHistory reports whether symbol has at least one historical row.
func (s *Store) HasHistory(ctx context.Context, symbol string) (bool, error) {
	var count int64
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.HistoricalPrice{}).Where("symbol = ?", symbol).Limit(1).Count(&count).Error
	})
	return count > 0, err
}

type closeRow struct {
	Day   models.Date     `gorm:"column:trade_date"`
	Close decimal.Decimal `gorm:"column:close"`
}

// Closes returns the closing prices of symbol within [start, end].
func (s *Store) Closes(ctx context.Context, symbol string, start, end models.Date) ([]float64, error) {
	var rows []closeRow
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.HistoricalPrice{}).
			Select("trade_date, close").
			Where("symbol = ? AND trade_date >= ? AND trade_date <= ?", symbol, start, end).
			Order("trade_date").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Close.InexactFloat64()
	}
	return out, nil
}

type pairRow struct {
	A decimal.Decimal `gorm:"column:a_close"`
	B decimal.Decimal `gorm:"column:b_close"`
}

// PairedCloses returns the closes of a and b on the dates both have rows for
// within [start, end].
func (s *Store) PairedCloses(ctx context.Context, a, b string, start, end models.Date) ([]float64, []float64, error) {
	var rows []pairRow
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Raw(`
			SELECT x.close AS a_close, y.close AS b_close
			FROM historical_prices x
			JOIN historical_prices y ON x.trade_date = y.trade_date
			WHERE x.symbol = ? AND y.symbol = ?
			  AND x.trade_date >= ? AND x.trade_date <= ?
			ORDER BY x.trade_date`,
			a, b, start, end,
		).Scan(&rows).Error
	})
	if err != nil {
		return nil, nil, err
	}

	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = r.A.InexactFloat64()
		ys[i] = r.B.InexactFloat64()
	}
	return xs, ys, nil
}

// FullHistory returns every (day, close) of symbol in date order.
func (s *Store) FullHistory(ctx context.Context, symbol string) ([]models.Date, []float64, error) {
	var rows []closeRow
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.HistoricalPrice{}).
			Select("trade_date, close").
			Where("symbol = ?", symbol).
			Order("trade_date").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, nil, err
	}

	days := make([]models.Date, len(rows))
	closes := make([]float64, len(rows))
	for i, r := range rows {
		days[i] = r.Day
		closes[i] = r.Close.InexactFloat64()
	}
	return days, closes, nil
}
