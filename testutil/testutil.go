// Package testutil provides an in-memory store and fixtures for tests.
package testutil

import (
	"testing"
	"time"

	"stocks-social/config"
	"stocks-social/database"
	"stocks-social/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// NewStore opens a migrated in-memory sqlite store that is closed when the
// test ends.
func NewStore(t *testing.T) *database.Store {
	t.Helper()

	store, err := database.Open(config.DBConfig{
		Driver:  "sqlite",
		Path:    "file::memory:",
		Timeout: 5 * time.Second,
	}, "warn", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate())

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: failed to close test store: %v", err)
		}
	})
	return store
}

// Dec parses a decimal literal, failing the test on error.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// Date parses a YYYY-MM-DD literal, failing the test on error.
func Date(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

// CreateUser inserts a user and returns its id.
func CreateUser(t *testing.T, store *database.Store, email string) uint {
	t.Helper()
	u := models.User{Email: email, Password: "x"}
	require.NoError(t, store.DB.Create(&u).Error)
	return u.ID
}

// CreatePortfolio inserts a portfolio owned by userID with the given cash.
func CreatePortfolio(t *testing.T, store *database.Store, userID uint, cash string) uint {
	t.Helper()
	p := models.Portfolio{UserID: userID, Name: models.DefaultPortfolioName, Cash: Dec(t, cash)}
	require.NoError(t, store.DB.Create(&p).Error)
	return p.ID
}

// SetPrice upserts a current stock price directly.
func SetPrice(t *testing.T, store *database.Store, symbol, price string) {
	t.Helper()
	require.NoError(t, store.DB.Save(&models.Stock{Symbol: symbol, CurrVal: Dec(t, price)}).Error)
}

// AddCloses inserts one historical row per close, on consecutive days
// starting at start.
func AddCloses(t *testing.T, store *database.Store, symbol, start string, closes ...float64) {
	t.Helper()
	day := Date(t, start)
	for i, c := range closes {
		v := decimal.NewFromFloat(c)
		row := models.HistoricalPrice{
			Symbol: symbol,
			Date:   day.AddDays(i),
			Open:   v,
			High:   v,
			Low:    v,
			Close:  v,
			Volume: 1000,
		}
		require.NoError(t, store.DB.Create(&row).Error)
	}
}
