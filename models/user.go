package models

import "gorm.io/gorm"

// User is an account known to the identity provider.
type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
}

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Portfolio{},
		&Holding{},
		&BoughtRecord{},
		&SoldRecord{},
		&Stock{},
		&HistoricalPrice{},
		&StatCacheEntry{},
		&StockList{},
		&StockListEntry{},
		&Review{},
		&Friendship{},
	}
}
