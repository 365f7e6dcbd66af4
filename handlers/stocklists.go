package handlers

import (
	"net/http"
	"strings"

	"stocks-social/apperr"
	"stocks-social/middleware"

	"github.com/gin-gonic/gin"
)

type StockListInput struct {
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

type VisibilityInput struct {
	Public *bool `json:"public"`
}

type ListStockInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity"`
}

type RemoveStockInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity *int64 `json:"quantity"`
}

type InviteInput struct {
	UserID uint `json:"user_id" binding:"required"`
}

type ReviewInput struct {
	Review string `json:"review"`
}

func (h *Handler) CreateStockList(c *gin.Context) {
	var input StockListInput
	if !h.bind(c, &input) {
		return
	}

	list, err := h.ledger.CreateStockList(c.Request.Context(), middleware.Actor(c), input.Name, input.Public)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (h *Handler) ListStockLists(c *gin.Context) {
	lists, err := h.ledger.ListStockLists(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

// ListReviewing returns the lists the actor has been invited to review.
func (h *Handler) ListReviewing(c *gin.Context) {
	lists, err := h.ledger.ListReviewing(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lists)
}

func (h *Handler) GetStockList(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}

	view, err := h.ledger.GetStockList(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) UpdateStockList(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input VisibilityInput
	if !h.bind(c, &input) {
		return
	}
	if input.Public == nil {
		h.respondError(c, apperr.New(apperr.KindInvalidArgument, "public is required"))
		return
	}

	list, err := h.ledger.SetVisibility(c.Request.Context(), middleware.Actor(c), id, *input.Public)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) DeleteStockList(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}

	if err := h.ledger.DeleteStockList(c.Request.Context(), middleware.Actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AddStockToList(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input ListStockInput
	if !h.bind(c, &input) {
		return
	}

	entry, err := h.ledger.AddStock(c.Request.Context(), middleware.Actor(c), id, strings.ToUpper(input.Symbol), input.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RemoveStockFromList removes the whole entry unless a smaller quantity is
// given.
func (h *Handler) RemoveStockFromList(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input RemoveStockInput
	if !h.bind(c, &input) {
		return
	}

	symbol := strings.ToUpper(input.Symbol)

	remaining, err := h.ledger.RemoveStock(c.Request.Context(), middleware.Actor(c), id, symbol, input.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "quantity": remaining})
}

func (h *Handler) StockListCovariance(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	m, err := h.stats.StockListMatrix(c.Request.Context(), middleware.Actor(c), id, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) InviteReviewer(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input InviteInput
	if !h.bind(c, &input) {
		return
	}

	if err := h.reviews.Invite(c.Request.Context(), middleware.Actor(c), id, input.UserID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invited user to review stock list"})
}

func (h *Handler) ListReviews(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}

	list, err := h.reviews.List(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetReview(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	reviewer, ok := h.paramID(c, "reviewer")
	if !ok {
		return
	}

	review, err := h.reviews.Get(c.Request.Context(), middleware.Actor(c), id, reviewer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) WriteReview(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	var input ReviewInput
	if !h.bind(c, &input) {
		return
	}

	review, err := h.reviews.Write(c.Request.Context(), middleware.Actor(c), id, input.Review)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// DeleteReview deletes the actor's own review, or with a :reviewer path
// parameter, another user's review on a list the actor owns.
func (h *Handler) DeleteReview(c *gin.Context) {
	id, ok := h.paramID(c, "id")
	if !ok {
		return
	}
	actor := middleware.Actor(c)
	reviewer := actor
	if c.Param("reviewer") != "" {
		if reviewer, ok = h.paramID(c, "reviewer"); !ok {
			return
		}
	}

	if err := h.reviews.Delete(c.Request.Context(), actor, id, reviewer); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
