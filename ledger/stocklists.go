package ledger

import (
	"context"
	"errors"
	"strings"

	"stocks-social/apperr"
	"stocks-social/models"
	"stocks-social/prices"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListEntry is a stock list entry valued at the current price.
type ListEntry struct {
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	CurrVal    decimal.Decimal `json:"curr_val"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// StockListView is a stock list with its valued entries.
type StockListView struct {
	StockList models.StockList `json:"stock_list"`
	Entries   []ListEntry      `json:"entries"`
}

// CreateStockList creates an empty list owned by actor.
func (s *Service) CreateStockList(ctx context.Context, actor uint, name string, public bool) (models.StockList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultStockListName
	}

	list := models.StockList{UserID: actor, Name: name, Public: public}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&list).Error
	})
	if err != nil {
		return models.StockList{}, err
	}

	s.log.Info().Uint("user_id", actor).Uint("stock_list_id", list.ID).Bool("public", public).Msg("Stock list created")
	return list, nil
}

// ListStockLists returns the stock lists owned by actor.
func (s *Service) ListStockLists(ctx context.Context, actor uint) ([]models.StockList, error) {
	lists := []models.StockList{}
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", actor).Order("id").Find(&lists).Error
	})
	return lists, err
}

// ListReviewing returns the lists of other users that actor holds a review
// row for.
func (s *Service) ListReviewing(ctx context.Context, actor uint) ([]models.StockList, error) {
	lists := []models.StockList{}
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Joins("JOIN reviews ON reviews.stock_list_id = stock_lists.id").
			Where("reviews.user_id = ? AND stock_lists.user_id <> ?", actor, actor).
			Order("stock_lists.id").
			Find(&lists).Error
	})
	return lists, err
}

// GetStockList returns a list and its entries. The actor must own the list,
// the list must be public, or the actor must have been invited to review it.
func (s *Service) GetStockList(ctx context.Context, actor, stockListID uint) (StockListView, error) {
	if err := s.guard.RequireReadableStockList(ctx, actor, stockListID); err != nil {
		return StockListView{}, err
	}

	var (
		view StockListView
		rows []positionRow
	)
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		if err := db.Where("id = ?", stockListID).Take(&view.StockList).Error; err != nil {
			return err
		}
		return db.Raw(`
			SELECT e.symbol, e.quantity, COALESCE(s.curr_val, 0) AS price
			FROM stock_list_entries e
			LEFT JOIN stocks s ON s.symbol = e.symbol
			WHERE e.stock_list_id = ?
			ORDER BY e.symbol`, stockListID).Scan(&rows).Error
	})
	if err != nil {
		return StockListView{}, err
	}

	view.Entries = make([]ListEntry, 0, len(rows))
	for _, r := range rows {
		view.Entries = append(view.Entries, ListEntry{
			Symbol:     r.Symbol,
			Quantity:   r.Quantity,
			CurrVal:    r.Price,
			TotalValue: r.Price.Mul(decimal.NewFromInt(r.Quantity)),
		})
	}
	return view, nil
}

// lockStockList locks the list row so that entry changes on one list run
// one at a time, including the first insert of a symbol.
func lockStockList(tx *gorm.DB, id uint) error {
	var list models.StockList
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "stock list %d not found", id)
	}
	return err
}

func lockEntry(tx *gorm.DB, stockListID uint, symbol string) (models.StockListEntry, bool, error) {
	var found []models.StockListEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stock_list_id = ? AND symbol = ?", stockListID, symbol).
		Limit(1).Find(&found).Error
	if err != nil || len(found) == 0 {
		return models.StockListEntry{}, false, err
	}
	return found[0], true, nil
}

// AddStock adds quantity of symbol to a list, creating the entry if needed.
func (s *Service) AddStock(ctx context.Context, actor, stockListID uint, symbol string, quantity int64) (models.StockListEntry, error) {
	if err := validateTrade(symbol, quantity); err != nil {
		return models.StockListEntry{}, err
	}
	if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
		return models.StockListEntry{}, err
	}

	var entry models.StockListEntry
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockStockList(tx, stockListID); err != nil {
			return err
		}
		if _, err := prices.CurrentPrice(tx, symbol); err != nil {
			return err
		}
		e, ok, err := lockEntry(tx, stockListID, symbol)
		if err != nil {
			return err
		}
		if !ok {
			entry = models.StockListEntry{StockListID: stockListID, Symbol: symbol, Quantity: quantity}
			return tx.Create(&entry).Error
		}
		entry = e
		entry.Quantity += quantity
		return tx.Model(&models.StockListEntry{}).
			Where("stock_list_id = ? AND symbol = ?", stockListID, symbol).
			Update("quantity", entry.Quantity).Error
	})
	if err != nil {
		return models.StockListEntry{}, err
	}
	return entry, nil
}

// RemoveStock removes quantity of symbol from a list. A nil quantity, or one
// at least the held amount, removes the entry. It returns the remaining
// quantity.
func (s *Service) RemoveStock(ctx context.Context, actor, stockListID uint, symbol string, quantity *int64) (int64, error) {
	if err := prices.ValidateSymbol(symbol); err != nil {
		return 0, err
	}
	if quantity != nil && *quantity <= 0 {
		return 0, apperr.New(apperr.KindInvalidAmount, "quantity must be positive")
	}
	if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
		return 0, err
	}

	var remaining int64
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := lockStockList(tx, stockListID); err != nil {
			return err
		}
		e, ok, err := lockEntry(tx, stockListID, symbol)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.New(apperr.KindNotFound, "%s is not in stock list %d", symbol, stockListID)
		}

		entry := tx.Model(&models.StockListEntry{}).Where("stock_list_id = ? AND symbol = ?", stockListID, symbol)
		if quantity == nil || *quantity >= e.Quantity {
			return entry.Delete(&models.StockListEntry{}).Error
		}
		remaining = e.Quantity - *quantity
		return entry.Update("quantity", remaining).Error
	})
	return remaining, err
}

// SetVisibility makes a list public or private.
func (s *Service) SetVisibility(ctx context.Context, actor, stockListID uint, public bool) (models.StockList, error) {
	if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
		return models.StockList{}, err
	}

	var list models.StockList
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&models.StockList{}).Where("id = ?", stockListID).Update("public", public).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", stockListID).Take(&list).Error
	})
	if err != nil {
		return models.StockList{}, err
	}

	s.log.Info().Uint("stock_list_id", stockListID).Bool("public", public).Msg("Stock list visibility changed")
	return list, nil
}

// DeleteStockList removes a list together with its entries and reviews.
func (s *Service) DeleteStockList(ctx context.Context, actor, stockListID uint) error {
	if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
		return err
	}

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("stock_list_id = ?", stockListID).Delete(&models.StockListEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("stock_list_id = ?", stockListID).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", stockListID).Delete(&models.StockList{}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("stock_list_id", stockListID).Msg("Stock list deleted")
	return nil
}
