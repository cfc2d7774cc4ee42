package model

import "time"

// Item is one indivisible unit of sellable inventory. Login is the natural key.
type Item struct {
	ID        int64
	Login     string
	Secret    string
	Notes     string
	Sold      bool
	BuyerID   *int64
	BuyerName *string
	SoldAt    *time.Time
	AddedAt   time.Time
}

// StockCount summarizes inventory levels.
type StockCount struct {
	Total     int
	Available int
}

// Sold returns the number of sold items.
func (c StockCount) Sold() int {
	return c.Total - c.Available
}
