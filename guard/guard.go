// Package guard answers authorization questions about portfolios and stock
// lists. Every predicate is a read-only query and denies when the target
// does not exist.
package guard

import (
	"context"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/models"

	"gorm.io/gorm"
)

// Guard evaluates ownership and visibility predicates.
type Guard struct {
	store *database.Store
}

func New(store *database.Store) *Guard {
	return &Guard{store: store}
}

func (g *Guard) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	err := g.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(model).Where(query, args...).Count(&count).Error
	})
	return count > 0, err
}

// OwnsPortfolio reports whether actor owns portfolioID.
func (g *Guard) OwnsPortfolio(ctx context.Context, actor, portfolioID uint) (bool, error) {
	return g.exists(ctx, &models.Portfolio{}, "id = ? AND user_id = ?", portfolioID, actor)
}

// OwnsStockList reports whether actor owns stockListID.
func (g *Guard) OwnsStockList(ctx context.Context, actor, stockListID uint) (bool, error) {
	return g.exists(ctx, &models.StockList{}, "id = ? AND user_id = ?", stockListID, actor)
}

// IsStockListPublic reports whether stockListID exists and is public.
func (g *Guard) IsStockListPublic(ctx context.Context, stockListID uint) (bool, error) {
	return g.exists(ctx, &models.StockList{}, "id = ? AND public = ?", stockListID, true)
}

// CanReview reports whether actor owns the list, the list is public, or
// actor holds a review row for it (an invitation).
func (g *Guard) CanReview(ctx context.Context, actor, stockListID uint) (bool, error) {
	var found []models.StockList
	err := g.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", stockListID).Limit(1).Find(&found).Error
	})
	if err != nil || len(found) == 0 {
		return false, err
	}

	if list := found[0]; list.UserID == actor || list.Public {
		return true, nil
	}
	return g.exists(ctx, &models.Review{}, "user_id = ? AND stock_list_id = ?", actor, stockListID)
}

// RequirePortfolio fails with NotOwned unless actor owns portfolioID.
func (g *Guard) RequirePortfolio(ctx context.Context, actor, portfolioID uint) error {
	ok, err := g.OwnsPortfolio(ctx, actor, portfolioID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotOwned, "portfolio %d does not exist or is not yours", portfolioID)
	}
	return nil
}

// RequireStockList fails with NotOwned unless actor owns stockListID.
func (g *Guard) RequireStockList(ctx context.Context, actor, stockListID uint) error {
	ok, err := g.OwnsStockList(ctx, actor, stockListID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotOwned, "stock list %d does not exist or is not yours", stockListID)
	}
	return nil
}

// RequireReadableStockList fails with NotOwned unless CanReview holds.
func (g *Guard) RequireReadableStockList(ctx context.Context, actor, stockListID uint) error {
	ok, err := g.CanReview(ctx, actor, stockListID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotOwned, "stock list %d does not exist or is not visible to you", stockListID)
	}
	return nil
}
