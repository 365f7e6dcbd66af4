package handlers

import (
	"stocks-social/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter wires every route.
func NewRouter(h *Handler, jwtSecret, adminKey string, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	// Public routes
	router.GET("/healthz", h.Health)
	router.POST("/signup", h.Signup)
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)
	router.POST("/logout", h.Logout)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.JWTAuth(jwtSecret))
	{
		auth.POST("/portfolios", h.CreatePortfolio)
		auth.GET("/portfolios", h.ListPortfolios)
		auth.POST("/portfolios/transfer", h.Transfer)
		auth.GET("/portfolios/:id", h.GetPortfolio)
		auth.GET("/portfolios/:id/trades", h.Trades)
		auth.POST("/portfolios/:id/buy", h.Buy)
		auth.POST("/portfolios/:id/sell", h.Sell)
		auth.POST("/portfolios/:id/deposit", h.Deposit)
		auth.POST("/portfolios/:id/withdraw", h.Withdraw)
		auth.GET("/portfolios/:id/covariance", h.PortfolioCovariance)

		auth.POST("/stocklists", h.CreateStockList)
		auth.GET("/stocklists", h.ListStockLists)
		auth.GET("/stocklists/reviewing", h.ListReviewing)
		auth.GET("/stocklists/:id", h.GetStockList)
		auth.PATCH("/stocklists/:id", h.UpdateStockList)
		auth.DELETE("/stocklists/:id", h.DeleteStockList)
		auth.POST("/stocklists/:id/stocks", h.AddStockToList)
		auth.DELETE("/stocklists/:id/stocks", h.RemoveStockFromList)
		auth.GET("/stocklists/:id/covariance", h.StockListCovariance)
		auth.POST("/stocklists/:id/invite", h.InviteReviewer)
		auth.GET("/stocklists/:id/reviews", h.ListReviews)
		auth.PUT("/stocklists/:id/reviews", h.WriteReview)
		auth.DELETE("/stocklists/:id/reviews", h.DeleteReview)
		auth.GET("/stocklists/:id/reviews/:reviewer", h.GetReview)
		auth.DELETE("/stocklists/:id/reviews/:reviewer", h.DeleteReview)

		auth.GET("/stocks", h.ListStocks)
		auth.GET("/stocks/:symbol", h.GetStock)
		auth.GET("/stocks/:symbol/prices", h.PriceSeries)
		auth.GET("/stocks/:symbol/statistics", h.Statistic)
		auth.GET("/stocks/:symbol/prediction", h.Prediction)
		auth.POST("/statistics/matrix", h.Matrix)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.AdminKey(adminKey))
	{
		admin.POST("/stocks", h.SetStockPrice)
		admin.POST("/stocks/history", h.InsertHistoricalPrice)
		admin.POST("/stocks/:symbol/refresh", h.RefreshStockPrice)
		admin.POST("/stocks/:symbol/import", h.ImportHistory)
	}

	return router
}
