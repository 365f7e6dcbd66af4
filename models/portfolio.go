package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultPortfolioName is used when a portfolio is created without a name.
const DefaultPortfolioName = "My Portfolio"

// MoneyScale is the number of decimal places stored for cash and prices.
const MoneyScale = 4

// FitsMoneyScale reports whether d can be stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// Portfolio is a user-owned cash account paired with share holdings.
type Portfolio struct {
	gorm.Model
	UserID uint            `gorm:"index;not null" json:"user_id"`
	Name   string          `gorm:"not null" json:"name"`
	Cash   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"cash"`
}

// Holding is the number of shares of one symbol held in a portfolio. A row
// exists only while Quantity > 0.
type Holding struct {
	PortfolioID uint      `gorm:"primaryKey" json:"portfolio_id"`
	Symbol      string    `gorm:"primaryKey;size:5" json:"symbol"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BoughtRecord is the append-only audit row of an executed buy.
type BoughtRecord struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PortfolioID uint            `gorm:"index;not null" json:"portfolio_id"`
	Symbol      string          `gorm:"size:5;not null" json:"symbol"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"price"`
	Timestamp   time.Time       `gorm:"not null" json:"timestamp"`
}

// SoldRecord is the append-only audit row of an executed sell.
type SoldRecord struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PortfolioID uint            `gorm:"index;not null" json:"portfolio_id"`
	Symbol      string          `gorm:"size:5;not null" json:"symbol"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"price"`
	Timestamp   time.Time       `gorm:"not null" json:"timestamp"`
}
