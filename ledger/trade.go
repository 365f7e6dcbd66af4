package ledger

import (
	"context"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/prices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeResult confirms an executed buy or sell.
type TradeResult struct {
	PortfolioID uint            `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	Cash        decimal.Decimal `json:"cash"`
	Holding     int64           `json:"holding"`
}

// TransferResult carries both balances after a transfer.
type TransferResult struct {
	FromCash decimal.Decimal `json:"from_cash"`
	ToCash   decimal.Decimal `json:"to_cash"`
}

func validateTrade(symbol string, quantity int64) error {
	if err := prices.ValidateSymbol(symbol); err != nil {
		return err
	}
	if quantity <= 0 {
		return apperr.New(apperr.KindInvalidAmount, "quantity must be positive")
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.New(apperr.KindInvalidAmount, "amount must be positive")
	}
	if !models.FitsMoneyScale(amount) {
		return apperr.New(apperr.KindInvalidAmount, "amount must have at most %d decimal places", models.MoneyScale)
	}
	return nil
}

// Buy purchases quantity shares of symbol at its current price.
func (s *Service) Buy(ctx context.Context, actor, portfolioID uint, symbol string, quantity int64) (TradeResult, error) {
	if err := validateTrade(symbol, quantity); err != nil {
		return TradeResult{}, err
	}
	if err := s.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return TradeResult{}, err
	}

	res := TradeResult{PortfolioID: portfolioID, Symbol: symbol, Quantity: quantity}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := lockPortfolio(tx, portfolioID)
		if err != nil {
			return err
		}
		price, err := prices.CurrentPrice(tx, symbol)
		if err != nil {
			return err
		}

		cost := price.Mul(decimal.NewFromInt(quantity))
		if cost.GreaterThan(p.Cash) {
			return apperr.New(apperr.KindInsufficientFunds,
				"buying %d %s costs %s but only %s is available", quantity, symbol, cost, p.Cash)
		}

		h, held, err := lockHolding(tx, portfolioID, symbol)
		if err != nil {
			return err
		}
		now := s.now()
		if held {
			h.Quantity += quantity
			err = tx.Model(&models.Holding{}).
				Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol).
				Updates(map[string]any{"quantity": h.Quantity, "updated_at": now}).Error
		} else {
			h = models.Holding{PortfolioID: portfolioID, Symbol: symbol, Quantity: quantity, UpdatedAt: now}
			err = tx.Create(&h).Error
		}
		if err != nil {
			return err
		}

		cash := p.Cash.Sub(cost)
		if err := setCash(tx, portfolioID, cash); err != nil {
			return err
		}
		if err := tx.Create(&models.BoughtRecord{
			PortfolioID: portfolioID,
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			Timestamp:   now,
		}).Error; err != nil {
			return err
		}

		res.Price, res.Total, res.Cash, res.Holding = price, cost, cash, h.Quantity
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}

	s.log.Info().Uint("portfolio_id", portfolioID).Str("symbol", symbol).Int64("quantity", quantity).
		Str("price", res.Price.String()).Msg("Shares bought")
	return res, nil
}

// Sell sells quantity shares of symbol at its current price. A holding that
// reaches zero is removed.
func (s *Service) Sell(ctx context.Context, actor, portfolioID uint, symbol string, quantity int64) (TradeResult, error) {
	if err := validateTrade(symbol, quantity); err != nil {
		return TradeResult{}, err
	}
	if err := s.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return TradeResult{}, err
	}

	res := TradeResult{PortfolioID: portfolioID, Symbol: symbol, Quantity: quantity}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := lockPortfolio(tx, portfolioID)
		if err != nil {
			return err
		}
		h, held, err := lockHolding(tx, portfolioID, symbol)
		if err != nil {
			return err
		}
		if !held || h.Quantity < quantity {
			return apperr.New(apperr.KindInsufficientShares,
				"cannot sell %d %s, portfolio holds %d", quantity, symbol, h.Quantity)
		}
		price, err := prices.CurrentPrice(tx, symbol)
		if err != nil {
			return err
		}

		now := s.now()
		holding := tx.Model(&models.Holding{}).Where("portfolio_id = ? AND symbol = ?", portfolioID, symbol)
		remaining := h.Quantity - quantity
		if remaining == 0 {
			err = holding.Delete(&models.Holding{}).Error
		} else {
			err = holding.Updates(map[string]any{"quantity": remaining, "updated_at": now}).Error
		}
		if err != nil {
			return err
		}

		proceeds := price.Mul(decimal.NewFromInt(quantity))
		cash := p.Cash.Add(proceeds)
		if err := setCash(tx, portfolioID, cash); err != nil {
			return err
		}
		if err := tx.Create(&models.SoldRecord{
			PortfolioID: portfolioID,
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			Timestamp:   now,
		}).Error; err != nil {
			return err
		}

		res.Price, res.Total, res.Cash, res.Holding = price, proceeds, cash, remaining
		return nil
	})
	if err != nil {
		return TradeResult{}, err
	}

	s.log.Info().Uint("portfolio_id", portfolioID).Str("symbol", symbol).Int64("quantity", quantity).
		Str("price", res.Price.String()).Msg("Shares sold")
	return res, nil
}

// Deposit adds amount to the portfolio's cash and returns the new balance.
func (s *Service) Deposit(ctx context.Context, actor, portfolioID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjustCash(ctx, actor, portfolioID, amount, false)
}

// Withdraw removes amount from the portfolio's cash and returns the new
// balance. The balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, actor, portfolioID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.adjustCash(ctx, actor, portfolioID, amount, true)
}

func (s *Service) adjustCash(ctx context.Context, actor, portfolioID uint, amount decimal.Decimal, withdraw bool) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	if err := s.guard.RequirePortfolio(ctx, actor, portfolioID); err != nil {
		return decimal.Zero, err
	}

	var cash decimal.Decimal
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		p, err := lockPortfolio(tx, portfolioID)
		if err != nil {
			return err
		}
		if withdraw {
			if amount.GreaterThan(p.Cash) {
				return apperr.New(apperr.KindInvalidAmount,
					"cannot withdraw %s, only %s is available", amount, p.Cash)
			}
			cash = p.Cash.Sub(amount)
		} else {
			cash = p.Cash.Add(amount)
		}
		return setCash(tx, portfolioID, cash)
	})
	if err != nil {
		return decimal.Zero, err
	}

	op := "Deposit"
	if withdraw {
		op = "Withdrawal"
	}
	s.log.Info().Uint("portfolio_id", portfolioID).Str("amount", amount.String()).Msg(op + " applied")
	return cash, nil
}

// Transfer moves amount between two portfolios owned by actor. Both legs
// commit together.
func (s *Service) Transfer(ctx context.Context, actor, fromID, toID uint, amount decimal.Decimal) (TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return TransferResult{}, err
	}
	if fromID == toID {
		return TransferResult{}, apperr.New(apperr.KindInvalidArgument, "cannot transfer to the same portfolio")
	}
	if err := s.guard.RequirePortfolio(ctx, actor, fromID); err != nil {
		return TransferResult{}, err
	}
	if err := s.guard.RequirePortfolio(ctx, actor, toID); err != nil {
		return TransferResult{}, err
	}

	var res TransferResult
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		// Lock in id order so concurrent opposite transfers cannot deadlock.
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		locked := make(map[uint]models.Portfolio, 2)
		for _, id := range []uint{first, second} {
			p, err := lockPortfolio(tx, id)
			if err != nil {
				return err
			}
			locked[id] = p
		}

		from, to := locked[fromID], locked[toID]
		if amount.GreaterThan(from.Cash) {
			return apperr.New(apperr.KindInsufficientFunds,
				"cannot transfer %s, only %s is available", amount, from.Cash)
		}
		res.FromCash = from.Cash.Sub(amount)
		res.ToCash = to.Cash.Add(amount)
		if err := setCash(tx, fromID, res.FromCash); err != nil {
			return err
		}
		return setCash(tx, toID, res.ToCash)
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.log.Info().Uint("from", fromID).Uint("to", toID).Str("amount", amount.String()).Msg("Transfer applied")
	return res, nil
}
