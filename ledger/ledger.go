// Package ledger owns portfolios, their cash and holdings, the trade audit
// log, and stock lists. Every mutation runs inside a single store
// transaction with the affected rows locked.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/guard"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TotalSymbol labels the aggregate row of a valuation.
const TotalSymbol = "Portfolio Total"

// Service implements the holdings ledger.
type Service struct {
	store *database.Store
	guard *guard.Guard
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store *database.Store, g *guard.Guard, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		guard: g,
		log:   log.With().Str("component", "ledger").Logger(),
		now:   time.Now,
	}
}

// Position is one row of a valuation.
type Position struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// Valuation is a portfolio's holdings at current prices. The last position
// is the aggregate row labelled TotalSymbol.
type Valuation struct {
	Portfolio models.Portfolio `json:"portfolio"`
	Positions []Position       `json:"positions"`
	Cash      decimal.Decimal  `json:"cash"`
}

// Trade is one executed buy or sell.
type Trade struct {
	Side      string          `json:"side"`
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// CreatePortfolio opens a portfolio for actor with the given starting cash.
func (s *Service) CreatePortfolio(ctx context.Context, actor uint, name string, cash decimal.Decimal) (models.Portfolio, error) {
	if cash.IsNegative() {
		return models.Portfolio{}, apperr.New(apperr.KindInvalidAmount, "initial cash must not be negative")
	}
	if !models.FitsMoneyScale(cash) {
		return models.Portfolio{}, apperr.New(apperr.KindInvalidAmount, "initial cash must have at most %d decimal places", models.MoneyScale)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultPortfolioName
	}

	p := models.Portfolio{UserID: actor, Name: name, Cash: cash}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&p).Error
	})
	if err != nil {
		return models.Portfolio{}, err
	}

	s.log.Info().Uint("user_id", actor).Uint("portfolio_id", p.ID).Msg("Portfolio created")
	return p, nil
}

// ListPortfolios returns the portfolios owned by actor.
func (s *Service) ListPortfolios(ctx context.Context, actor uint) ([]models.Portfolio, error) {
	portfolios := []models.Portfolio{}
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", actor).Order("id").Find(&portfolios).Error
	})
	return portfolios, err
}

type positionRow struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
}

// Valuation joins every holding with the current price of its symbol.
func (s *Service) Valuation(ctx context.Context, actor, portfolioID uint) (Valuation, error) {
	if err := s.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return Valuation{}, err
	}

	var (
		p    models.Portfolio
		rows []positionRow
	)
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		if err := db.Where("id = ?", portfolioID).Take(&p).Error; err != nil {
			return err
		}
		return db.Raw(`
			SELECT h.symbol, h.quantity, COALESCE(s.curr_val, 0) AS price
			FROM holdings h
			LEFT JOIN stocks s ON s.symbol = h.symbol
			WHERE h.portfolio_id = ? AND h.quantity > 0
			ORDER BY h.symbol`, portfolioID).Scan(&rows).Error
	})
	if err != nil {
		return Valuation{}, err
	}

	v := Valuation{Portfolio: p, Cash: p.Cash, Positions: make([]Position, 0, len(rows)+1)}
	total := Position{Symbol: TotalSymbol, Value: decimal.Zero}
	for _, r := range rows {
		value := r.Price.Mul(decimal.NewFromInt(r.Quantity))
		v.Positions = append(v.Positions, Position{Symbol: r.Symbol, Quantity: r.Quantity, Price: r.Price, Value: value})
		total.Quantity += r.Quantity
		total.Value = total.Value.Add(value)
	}
	v.Positions = append(v.Positions, total)
	return v, nil
}

// Trades returns the buy and sell log of a portfolio, newest first.
func (s *Service) Trades(ctx context.Context, actor, portfolioID uint) ([]Trade, error) {
	if err := s.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return nil, err
	}

	var (
		bought []models.BoughtRecord
		sold   []models.SoldRecord
	)
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		if err := db.Where("portfolio_id = ?", portfolioID).Find(&bought).Error; err != nil {
			return err
		}
		return db.Where("portfolio_id = ?", portfolioID).Find(&sold).Error
	})
	if err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(bought)+len(sold))
	for _, b := range bought {
		trades = append(trades, Trade{Side: "buy", Symbol: b.Symbol, Quantity: b.Quantity, Price: b.Price, Timestamp: b.Timestamp})
	}
	for _, r := range sold {
		trades = append(trades, Trade{Side: "sell", Symbol: r.Symbol, Quantity: r.Quantity, Price: r.Price, Timestamp: r.Timestamp})
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.After(trades[j].Timestamp)
	})
	return trades, nil
}

func lockPortfolio(tx *gorm.DB, id uint) (models.Portfolio, error) {
	var p models.Portfolio
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, apperr.New(apperr.KindNotFound, "portfolio %d not found", id)
	}
	return p, err
}

func setCash(tx *gorm.DB, id uint, cash decimal.Decimal) error {
	return tx.Model(&models.Portfolio{}).Where("id = ?", id).Update("cash", cash).Error
}

// lockHolding returns the holding row, or ok=false when the portfolio holds
// none of symbol.
func lockHolding(tx *gorm.DB, portfolioID uint, symbol string) (models.Holding, bool, error) {
	var found []models.Holding
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol).
		Limit(1).Find(&found).Error
	if err != nil || len(found) == 0 {
		return models.Holding{}, false, err
	}
	return found[0], true, nil
}
