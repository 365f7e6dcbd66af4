package models

import "time"

// DefaultStockListName is used when a stock list is created without a name.
const DefaultStockListName = "My Stock List"

// StockList is a named collection of (symbol, quantity) entries with no cash
// attached. Public lists may be read and reviewed by anyone.
type StockList struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Name      string    `gorm:"not null" json:"name"`
	Public    bool      `gorm:"not null;default:false" json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

// StockListEntry is the notional quantity of a symbol in a stock list.
type StockListEntry struct {
	StockListID uint   `gorm:"primaryKey" json:"stock_list_id"`
	Symbol      string `gorm:"primaryKey;size:5" json:"symbol"`
	Quantity    int64  `gorm:"not null" json:"quantity"`
}

// Review is a user's review of a stock list. An invitation is a review row
// with empty Body.
type Review struct {
	UserID      uint      `gorm:"primaryKey" json:"user_id"`
	StockListID uint      `gorm:"primaryKey;index" json:"stock_list_id"`
	Body        string    `gorm:"type:text;not null;default:''" json:"review"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Friendship is an accepted friendship, stored once per pair with
// UserA < UserB. Rows are written by the friend-graph service.
type Friendship struct {
	UserA     uint      `gorm:"primaryKey" json:"user_a"`
	UserB     uint      `gorm:"primaryKey" json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}
