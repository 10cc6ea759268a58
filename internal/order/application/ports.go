package application

import (
	"context"
	"time"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/domain"
)

type CustomerDirectory interface {
	FindByID(ctx context.Context, id string) (customer.Customer, bool, error)
}

// ProductCatalog returns only products that exist, in no particular order.
type ProductCatalog interface {
	FindAllByID(ctx context.Context, ids []string) ([]inventory.Product, error)
	UpdateQuantity(ctx context.Context, updates []inventory.StockUpdate) error
}

type OrderStore interface {
	Create(ctx context.Context, o domain.NewOrder) (domain.Order, error)
	FindByID(ctx context.Context, id string) (domain.Order, bool, error)
}

// Transactor runs fn as one unit of work. Catalog reads made inside it must
// hold their rows until it ends, and any error returned by fn rolls back
// everything fn wrote.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Recorder interface {
	ObserveOrder(outcome string, elapsed time.Duration)
}
