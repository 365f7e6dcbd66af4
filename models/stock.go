package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a ticker with its current price.
type Stock struct {
	Symbol    string          `gorm:"primaryKey;size:5" json:"symbol"`
	CurrVal   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"curr_val"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// HistoricalPrice is one trading day of OHLCV data. Rows are write-once per
// (symbol, date).
type HistoricalPrice struct {
	Symbol string          `gorm:"primaryKey;size:5" json:"symbol"`
	Date   Date            `gorm:"primaryKey;column:trade_date" json:"timestamp"`
	Open   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"open"`
	High   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"high"`
	Low    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"low"`
	Close  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"close"`
	Volume int64           `gorm:"not null" json:"volume"`
}

// StatCacheEntry is a computed statistic over a closed date range. SymbolA
// and SymbolB are stored in sorted order. A nil Value records that no data
// was available.
type StatCacheEntry struct {
	Kind      string    `gorm:"primaryKey;size:16"`
	SymbolA   string    `gorm:"primaryKey;size:5"`
	SymbolB   string    `gorm:"primaryKey;size:5"`
	StartDate Date      `gorm:"primaryKey"`
	EndDate   Date      `gorm:"primaryKey"`
	Value     *float64
	CreatedAt time.Time
}

func (StatCacheEntry) TableName() string { return "stat_cache" }
