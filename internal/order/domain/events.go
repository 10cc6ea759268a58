package domain

import "time"

type OrderCreatedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderCreated struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Total      string             `json:"total"`
	Lines      []OrderCreatedLine `json:"lines"`
	CreatedAt  time.Time          `json:"created_at"`
}

func NewOrderCreated(o Order) OrderCreated {
	lines := make([]OrderCreatedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderCreatedLine{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price.String()})
	}
	return OrderCreated{
		OrderID:    o.ID,
		CustomerID: o.Customer.ID,
		Total:      o.Total.String(),
		Lines:      lines,
		CreatedAt:  o.CreatedAt,
	}
}
