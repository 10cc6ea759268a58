// Package memory keeps customers, products and orders in process. Units of
// work run one at a time and their writes are undone when they fail.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/domain"
)

type Store struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	customers map[string]customer.Customer
	products  map[string]inventory.Product
	orders    map[string]domain.Order
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		customers: make(map[string]customer.Customer),
		products:  make(map[string]inventory.Product),
		orders:    make(map[string]domain.Order),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) PutCustomer(c customer.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

func (s *Store) PutProduct(p inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) Product(id string) (inventory.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) Customers() *Customers { return &Customers{s: s} }
func (s *Store) Products() *Products   { return &Products{s: s} }
func (s *Store) Orders() *Orders       { return &Orders{s: s} }

type txKey struct{}

// journal holds undo steps for the writes of one unit of work.
type journal struct{ undo []func() }

// record adds an undo step when ctx belongs to a unit of work. Callers hold
// s.mu.
func record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// WithinTx serializes units of work. When fn fails, only the products and
// orders it wrote are restored; writes made outside the unit survive.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

type Customers struct{ s *Store }

func (c *Customers) FindByID(ctx context.Context, id string) (customer.Customer, bool, error) {
	if err := ctx.Err(); err != nil {
		return customer.Customer{}, false, err
	}
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	found, ok := c.s.customers[id]
	return found, ok, nil
}

// Create adds c unless a customer with the same id exists.
func (c *Customers) Create(ctx context.Context, cust customer.Customer) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.customers[cust.ID]; !ok {
		c.s.customers[cust.ID] = cust
	}
	return nil
}

type Products struct{ s *Store }

// Create adds prod unless a product with the same id exists.
func (p *Products) Create(ctx context.Context, prod inventory.Product) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.products[prod.ID]; !ok {
		p.s.products[prod.ID] = prod
	}
	return nil
}

func (p *Products) FindAllByID(ctx context.Context, ids []string) ([]inventory.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	out := make([]inventory.Product, 0, len(ids))
	for _, id := range slices.Compact(slices.Sorted(slices.Values(ids))) {
		if prod, ok := p.s.products[id]; ok {
			out = append(out, prod)
		}
	}
	return out, nil
}

// UpdateQuantity applies every update or none.
func (p *Products) UpdateQuantity(ctx context.Context, updates []inventory.StockUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, u := range updates {
		if _, ok := p.s.products[u.ProductID]; !ok {
			return fmt.Errorf("memory: update stock for %q: product not found", u.ProductID)
		}
	}
	now := p.s.now()
	for _, u := range updates {
		prod := p.s.products[u.ProductID]
		id, prev := u.ProductID, prod
		record(ctx, func() { p.s.products[id] = prev })
		prod.Quantity = u.Quantity
		prod.UpdatedAt = now
		p.s.products[u.ProductID] = prod
	}
	return nil
}

type Orders struct{ s *Store }

func (o *Orders) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	order := domain.Order{
		ID:        uuid.NewString(),
		Customer:  in.Customer,
		Lines:     make([]domain.OrderLineItem, 0, len(in.Lines)),
		CreatedAt: o.s.now(),
	}
	for _, l := range in.Lines {
		order.Lines = append(order.Lines, domain.OrderLineItem{
			ID:        uuid.NewString(),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	order.Total = domain.Total(order.Lines)

	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	o.s.orders[order.ID] = order
	record(ctx, func() { delete(o.s.orders, order.ID) })
	return cloneOrder(order), nil
}

func (o *Orders) FindByID(ctx context.Context, id string) (domain.Order, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, false, err
	}
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	order, ok := o.s.orders[id]
	if !ok {
		return domain.Order{}, false, nil
	}
	return cloneOrder(order), true, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}
