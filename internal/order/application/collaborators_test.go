package application

import (
	"context"
	"sync"
	"time"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/infrastructure/memory"
)

// callLog records collaborator calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type spyCustomers struct {
	log  *callLog
	next *memory.Customers
}

func (s spyCustomers) FindByID(ctx context.Context, id string) (customer.Customer, bool, error) {
	s.log.add("customers.FindByID")
	return s.next.FindByID(ctx, id)
}

type spyProducts struct {
	log       *callLog
	next      *memory.Products
	findErr   error
	updateErr error
	updates   *[][]inventory.StockUpdate
}

func (s spyProducts) FindAllByID(ctx context.Context, ids []string) ([]inventory.Product, error) {
	s.log.add("products.FindAllByID")
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.next.FindAllByID(ctx, ids)
}

func (s spyProducts) UpdateQuantity(ctx context.Context, updates []inventory.StockUpdate) error {
	s.log.add("products.UpdateQuantity")
	if s.updates != nil {
		*s.updates = append(*s.updates, updates)
	}
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.next.UpdateQuantity(ctx, updates)
}

type spyOrders struct {
	log       *callLog
	next      *memory.Orders
	createErr error
}

func (s spyOrders) Create(ctx context.Context, o domain.NewOrder) (domain.Order, error) {
	s.log.add("orders.Create")
	if s.createErr != nil {
		return domain.Order{}, s.createErr
	}
	return s.next.Create(ctx, o)
}

func (s spyOrders) FindByID(ctx context.Context, id string) (domain.Order, bool, error) {
	return s.next.FindByID(ctx, id)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ObserveOrder(outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

type fixture struct {
	store    *memory.Store
	log      *callLog
	products *spyProducts
	orders   *spyOrders
	updates  [][]inventory.StockUpdate
	rec      *countingRecorder
}

func newFixture() *fixture {
	f := &fixture{store: memory.NewStore(), log: &callLog{}, rec: &countingRecorder{}}
	f.products = &spyProducts{log: f.log, next: f.store.Products(), updates: &f.updates}
	f.orders = &spyOrders{log: f.log, next: f.store.Orders()}
	return f
}

// service is built lazily so tests can set failure injection first.
func (f *fixture) service() *Service {
	return NewService(
		spyCustomers{log: f.log, next: f.store.Customers()},
		f.products,
		f.orders,
		f.store,
		WithRecorder(f.rec),
	)
}
