package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry with its current price and stock on hand.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	UpdatedAt time.Time
}

// StockUpdate sets a product's stock to an absolute quantity.
type StockUpdate struct {
	ProductID string
	Quantity  int
}
