package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
)

// RequestLine is one product/quantity pair of an incoming order request.
type RequestLine struct {
	ProductID string
	Quantity  int
}

type OrderRequest struct {
	CustomerID string
	Lines      []RequestLine
}

// MaxQuantity caps the total requested for one product across all lines of
// a request. Stock is stored as a 32-bit integer.
const MaxQuantity = math.MaxInt32

// Validate rejects requests that cannot describe an order at all.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return &ValidationError{Err: ErrInvalidRequest, Detail: "customer id is required"}
	}
	if len(r.Lines) == 0 {
		return &ValidationError{Err: ErrInvalidRequest, Detail: "at least one product is required"}
	}
	totals := make(map[string]int, len(r.Lines))
	for _, line := range r.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return &ValidationError{Err: ErrInvalidRequest, Detail: "product id is required"}
		}
		if line.Quantity <= 0 {
			return &ValidationError{Err: ErrInvalidRequest, Detail: "quantity must be positive", ProductIDs: []string{line.ProductID}}
		}
		if line.Quantity > MaxQuantity-totals[line.ProductID] {
			return &ValidationError{Err: ErrInvalidRequest, Detail: "quantity exceeds limit", ProductIDs: []string{line.ProductID}}
		}
		totals[line.ProductID] += line.Quantity
	}
	return nil
}

// ProductIDs returns the distinct product ids in first-appearance order.
func (r OrderRequest) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Lines))
	ids := make([]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

// RequestedByProduct sums requested quantities per product id.
func (r OrderRequest) RequestedByProduct() map[string]int {
	totals := make(map[string]int, len(r.Lines))
	for _, line := range r.Lines {
		totals[line.ProductID] += line.Quantity
	}
	return totals
}

// PricedLine is a request line with the catalog price captured at order time.
type PricedLine struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// NewOrder is what the order store receives; it assigns identities.
type NewOrder struct {
	Customer customer.Customer
	Lines    []PricedLine
}

type OrderLineItem struct {
	ID        string
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

func (l OrderLineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID        string
	Customer  customer.Customer
	Lines     []OrderLineItem
	Total     decimal.Decimal
	CreatedAt time.Time
}

func Total(lines []OrderLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
