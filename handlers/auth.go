package handlers

import (
	"errors"
	"net/http"
	"strings"

	"stocks-social/apperr"
	"stocks-social/cache"
	"stocks-social/middleware"
	"stocks-social/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type SignupInput struct {
	AuthInput
	Cash decimal.Decimal `json:"cash"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Signup registers a user together with their default portfolio.
func (h *Handler) Signup(c *gin.Context) {
	var input SignupInput
	if !h.bind(c, &input) {
		return
	}
	if input.Cash.IsNegative() {
		h.respondError(c, apperr.New(apperr.KindInvalidAmount, "initial cash must not be negative"))
		return
	}
	if !models.FitsMoneyScale(input.Cash) {
		h.respondError(c, apperr.New(apperr.KindInvalidAmount, "initial cash must have at most %d decimal places", models.MoneyScale))
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindOperationFailed, err, "error hashing password"))
		return
	}

	user := models.User{Email: email, Password: string(hashedPassword)}
	portfolio := models.Portfolio{Name: models.DefaultPortfolioName, Cash: input.Cash}
	err = h.store.Transaction(c.Request.Context(), func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.New(apperr.KindInvalidArgument, "email already exists")
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindInvalidArgument, "email already exists")
			}
			return err
		}
		portfolio.UserID = user.ID
		return tx.Create(&portfolio).Error
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info().Uint("user_id", user.ID).Msg("User registered")
	c.JSON(http.StatusCreated, gin.H{
		"message":      "User created successfully",
		"user_id":      user.ID,
		"portfolio_id": portfolio.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input AuthInput
	if !h.bind(c, &input) {
		return
	}

	var users []models.User
	err := h.store.Read(c.Request.Context(), func(db *gorm.DB) error {
		return db.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).Limit(1).Find(&users).Error
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(users) == 0 || bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "invalid credentials"}})
		return
	}

	h.issueTokens(c, users[0].ID)
}

// Refresh exchanges a refresh token for a new token pair. When a token store
// is configured the old refresh token must still be on record and is revoked.
func (h *Handler) Refresh(c *gin.Context) {
	var input RefreshInput
	if !h.bind(c, &input) {
		return
	}

	userID, err := middleware.ParseRefreshToken(h.jwtSecret, input.RefreshToken)
	if err == nil && h.tokens != nil {
		var stored uint
		stored, err = h.tokens.ConsumeRefreshToken(c.Request.Context(), input.RefreshToken)
		if err == nil && stored != userID {
			err = cache.ErrTokenNotFound
		}
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "Unauthorized", "message": "invalid refresh token"}})
		return
	}

	h.issueTokens(c, userID)
}

// Logout revokes a refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var input RefreshInput
	if !h.bind(c, &input) {
		return
	}
	if h.tokens != nil {
		if err := h.tokens.RevokeRefreshToken(c.Request.Context(), input.RefreshToken); err != nil {
			h.respondError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "token store unavailable"))
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) issueTokens(c *gin.Context, userID uint) {
	accessToken, refreshToken, err := middleware.IssueTokens(h.jwtSecret, userID)
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindOperationFailed, err, "error generating token"))
		return
	}

	if h.tokens != nil {
		err := h.tokens.StoreRefreshToken(c.Request.Context(), refreshToken, userID, middleware.RefreshTokenTTL)
		if err != nil {
			h.respondError(c, apperr.Wrap(apperr.KindStoreUnavailable, err, "error storing refresh token"))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}
