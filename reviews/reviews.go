// Package reviews manages stock list reviews and the invitations that grant
// access to private lists.
package reviews

import (
	"context"
	"errors"
	"unicode/utf8"

	"stocks-social/apperr"
	"stocks-social/database"
	"stocks-social/guard"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxReviewLength is the longest review body accepted, in characters.
const MaxReviewLength = 4000

// FriendGraph answers whether two users are friends.
type FriendGraph interface {
	IsFriend(ctx context.Context, a, b uint) (bool, error)
}

// StoreFriendGraph reads accepted friendships from the friendships table.
type StoreFriendGraph struct {
	store *database.Store
}

func NewStoreFriendGraph(store *database.Store) *StoreFriendGraph {
	return &StoreFriendGraph{store: store}
}

func (g *StoreFriendGraph) IsFriend(ctx context.Context, a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	if b < a {
		a, b = b, a
	}
	var count int64
	err := g.store.Read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.Friendship{}).Where("user_a = ? AND user_b = ?", a, b).Count(&count).Error
	})
	return count > 0, err
}

type Service struct {
	store   *database.Store
	guard   *guard.Guard
	friends FriendGraph
	log     zerolog.Logger
}

func NewService(store *database.Store, g *guard.Guard, friends FriendGraph, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		guard:   g,
		friends: friends,
		log:     log.With().Str("component", "reviews").Logger(),
	}
}

// Invite lets invitee review a list owned by actor by creating a blank review
// row. Private lists may only be shared with friends.
func (s *Service) Invite(ctx context.Context, actor, stockListID, invitee uint) error {
	if actor == invitee {
		return apperr.New(apperr.KindInvalidArgument, "you cannot invite yourself to review your stock list")
	}
	if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
		return err
	}

	public, err := s.guard.IsStockListPublic(ctx, stockListID)
	if err != nil {
		return err
	}
	if !public {
		friend, err := s.friends.IsFriend(ctx, actor, invitee)
		if err != nil {
			return err
		}
		if !friend {
			return apperr.New(apperr.KindNotOwned, "you can only invite friends to review a private stock list")
		}
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", invitee).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindNotFound, "user %d not found", invitee)
			}
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Review{UserID: invitee, StockListID: stockListID}).Error
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("stock_list_id", stockListID).Uint("invitee", invitee).Msg("Reviewer invited")
	return nil
}

// Write creates or replaces actor's review of a list.
func (s *Service) Write(ctx context.Context, actor, stockListID uint, body string) (models.Review, error) {
	if utf8.RuneCountInString(body) > MaxReviewLength {
		return models.Review{}, apperr.New(apperr.KindInvalidArgument, "review is longer than %d characters", MaxReviewLength)
	}
	ok, err := s.guard.CanReview(ctx, actor, stockListID)
	if err != nil {
		return models.Review{}, err
	}
	if !ok {
		return models.Review{}, apperr.New(apperr.KindNotOwned,
			"stock list %d does not exist or you were not invited to review it", stockListID)
	}

	review := models.Review{UserID: actor, StockListID: stockListID, Body: body}
	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "stock_list_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
		}).Create(&review).Error
	})
	if err != nil {
		return models.Review{}, err
	}
	return review, nil
}

// canRead reports whether actor may see reviews on a list: the list is
// public or actor owns it.
func (s *Service) canRead(ctx context.Context, actor, stockListID uint) (bool, error) {
	public, err := s.guard.IsStockListPublic(ctx, stockListID)
	if err != nil || public {
		return public, err
	}
	return s.guard.OwnsStockList(ctx, actor, stockListID)
}

// List returns every review of a list.
func (s *Service) List(ctx context.Context, actor, stockListID uint) ([]models.Review, error) {
	ok, err := s.canRead(ctx, actor, stockListID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotOwned, "you are not allowed to view reviews of stock list %d", stockListID)
	}

	reviews := []models.Review{}
	err = s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("stock_list_id = ?", stockListID).Order("user_id").Find(&reviews).Error
	})
	return reviews, err
}

// Get returns reviewer's review of a list. Reviewers can always read their
// own review.
func (s *Service) Get(ctx context.Context, actor, stockListID, reviewer uint) (models.Review, error) {
	ok := actor == reviewer
	if !ok {
		var err error
		if ok, err = s.canRead(ctx, actor, stockListID); err != nil {
			return models.Review{}, err
		}
	}
	if !ok {
		return models.Review{}, apperr.New(apperr.KindNotOwned, "you are not allowed to view reviews of stock list %d", stockListID)
	}

	var found []models.Review
	err := s.store.Read(ctx, func(db *gorm.DB) error {
		return db.Where("stock_list_id = ? AND user_id = ?", stockListID, reviewer).Limit(1).Find(&found).Error
	})
	if err != nil {
		return models.Review{}, err
	}
	if len(found) == 0 {
		return models.Review{}, apperr.New(apperr.KindNotFound, "no review of stock list %d by user %d", stockListID, reviewer)
	}
	return found[0], nil
}

// Delete removes reviewer's review. Only the reviewer or the list owner may
// delete it.
func (s *Service) Delete(ctx context.Context, actor, stockListID, reviewer uint) error {
	if actor != reviewer {
		if err := s.guard.RequireStockList(ctx, actor, stockListID); err != nil {
			return err
		}
	}

	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		res := tx.Where("stock_list_id = ? AND user_id = ?", stockListID, reviewer).Delete(&models.Review{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindNotFound, "no review of stock list %d by user %d", stockListID, reviewer)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("stock_list_id", stockListID).Uint("reviewer", reviewer).Msg("Review deleted")
	return nil
}
