package application

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/domain"
)

func line(id string, qty int) domain.RequestLine {
	return domain.RequestLine{ProductID: id, Quantity: qty}
}

func wantValidation(t *testing.T, err, sentinel error, ids ...string) {
	t.Helper()
	if !errors.Is(err, sentinel) {
		t.Fatalf("want %v, got %v", sentinel, err)
	}
	v, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("want *ValidationError, got %T", err)
	}
	if len(ids) == 0 {
		ids = nil
	}
	if !slices.Equal(v.ProductIDs, ids) {
		t.Fatalf("ProductIDs: want=%v got=%v", ids, v.ProductIDs)
	}
}

func wantNoMutation(t *testing.T, f *fixture) {
	t.Helper()
	for _, c := range f.log.list() {
		if c == "orders.Create" || c == "products.UpdateQuantity" {
			t.Fatalf("validation failure must not reach %s; calls=%v", c, f.log.list())
		}
	}
}

func TestCreateOrderCustomerNotFound(t *testing.T) {
	f := newFixture()
	f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})

	_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
		CustomerID: "C1",
		Lines:      []domain.RequestLine{line("P1", 1)},
	})
	wantValidation(t, err, domain.ErrCustomerNotFound)

	if got := f.log.list(); !slices.Equal(got, []string{"customers.FindByID"}) {
		t.Fatalf("calls: want=[customers.FindByID] got=%v", got)
	}
}

func TestCreateOrderNoProductsFound(t *testing.T) {
	f := newFixture()
	f.store.PutCustomer(customer.Customer{ID: "C1"})

	_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
		CustomerID: "C1",
		Lines:      []domain.RequestLine{line("P1", 1)},
	})
	wantValidation(t, err, domain.ErrNoProductsFound)
	wantNoMutation(t, f)
}

func TestCreateOrderProductsNotFound(t *testing.T) {
	cases := []struct {
		name  string
		lines []domain.RequestLine
		want  []string
	}{
		{"single unknown", []domain.RequestLine{line("P1", 1), line("P2", 1)}, []string{"P2"}},
		{"request order kept", []domain.RequestLine{line("P3", 1), line("P1", 1), line("P2", 1)}, []string{"P3", "P2"}},
		{"duplicates repeat", []domain.RequestLine{line("P2", 1), line("P1", 1), line("P2", 3)}, []string{"P2", "P2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.store.PutCustomer(customer.Customer{ID: "C1"})
			f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})

			_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{CustomerID: "C1", Lines: tc.lines})
			wantValidation(t, err, domain.ErrProductsNotFound, tc.want...)
			wantNoMutation(t, f)
		})
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture()
	f.store.PutCustomer(customer.Customer{ID: "C1"})
	f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 1})
	f.store.PutProduct(inventory.Product{ID: "P2", Price: decimal.NewFromInt(4), Quantity: 9})

	_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
		CustomerID: "C1",
		Lines:      []domain.RequestLine{line("P2", 9), line("P1", 2)},
	})
	wantValidation(t, err, domain.ErrInsufficientStock, "P1")
	wantNoMutation(t, f)

	if p, _ := f.store.Product("P1"); p.Quantity != 1 {
		t.Fatalf("P1 stock: want=1 got=%d", p.Quantity)
	}
}

func TestCreateOrderSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.PutCustomer(customer.Customer{ID: "C1"})
	f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})

	order, err := f.service().CreateOrder(ctx, domain.OrderRequest{
		CustomerID: "C1",
		Lines:      []domain.RequestLine{line("P1", 2)},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.ID == "" || order.Customer.ID != "C1" {
		t.Fatalf("order identity: %+v", order)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("lines: want=1 got=%d", len(order.Lines))
	}
	l := order.Lines[0]
	if l.ProductID != "P1" || l.Quantity != 2 || !l.Price.Equal(decimal.NewFromInt(10)) || l.ID == "" {
		t.Fatalf("line: want={P1 2 10} got=%+v", l)
	}
	if !order.Total.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("Total: want=20 got=%s", order.Total)
	}
	if p, _ := f.store.Product("P1"); p.Quantity != 3 {
		t.Fatalf("P1 stock: want=3 got=%d", p.Quantity)
	}

	want := []string{"customers.FindByID", "products.FindAllByID", "orders.Create", "products.UpdateQuantity"}
	if got := f.log.list(); !slices.Equal(got, want) {
		t.Fatalf("calls: want=%v got=%v", want, got)
	}
	if f.rec.outcomes["created"] != 1 {
		t.Fatalf("recorder: want created=1 got=%v", f.rec.outcomes)
	}
}

func TestCreateOrderDebitsEveryProduct(t *testing.T) {
	f := newFixture()
	f.store.PutCustomer(customer.Customer{ID: "C1"})
	f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})
	f.store.PutProduct(inventory.Product{ID: "P2", Price: decimal.RequireFromString("2.25"), Quantity: 7})
	f.store.PutProduct(inventory.Product{ID: "P3", Price: decimal.NewFromInt(1), Quantity: 1})

	_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
		CustomerID: "C1",
		Lines:      []domain.RequestLine{line("P2", 7), line("P1", 4), line("P3", 1)},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	for id, want := range map[string]int{"P1": 1, "P2": 0, "P3": 0} {
		if p, _ := f.store.Product(id); p.Quantity != want {
			t.Fatalf("%s stock: want=%d got=%d", id, want, p.Quantity)
		}
	}
	if len(f.updates) != 1 || len(f.updates[0]) != 3 {
		t.Fatalf("UpdateQuantity batches: want one batch of 3, got %v", f.updates)
	}
}

func TestCreateOrderPriceIsSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.PutCustomer(customer.Customer{ID: "C1"})
	f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})
	svc := f.service()

	order, err := svc.CreateOrder(ctx, domain.OrderRequest{CustomerID: "C1", Lines: []domain.RequestLine{line("P1", 1)}})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	p, _ := f.store.Product("P1")
	p.Price = decimal.NewFromInt(99)
	f.store.PutProduct(p)

	stored, err := svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !stored.Lines[0].Price.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("price: want=10 got=%s", stored.Lines[0].Price)
	}
}

// Lines naming the same product are checked and debited against their sum,
// not one at a time against the same snapshot.
func TestCreateOrderAggregatesDuplicateLines(t *testing.T) {
	t.Run("debits the sum", func(t *testing.T) {
		f := newFixture()
		f.store.PutCustomer(customer.Customer{ID: "C1"})
		f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})

		order, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
			CustomerID: "C1",
			Lines:      []domain.RequestLine{line("P1", 2), line("P1", 2)},
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if len(order.Lines) != 2 {
			t.Fatalf("lines: want=2 got=%d", len(order.Lines))
		}
		if p, _ := f.store.Product("P1"); p.Quantity != 1 {
			t.Fatalf("P1 stock: want=1 got=%d", p.Quantity)
		}
		if len(f.updates[0]) != 1 {
			t.Fatalf("updates: want one per product, got %v", f.updates[0])
		}
	})

	t.Run("rejects when the sum exceeds stock", func(t *testing.T) {
		f := newFixture()
		f.store.PutCustomer(customer.Customer{ID: "C1"})
		f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 3})
		f.store.PutProduct(inventory.Product{ID: "P2", Price: decimal.NewFromInt(1), Quantity: 3})

		_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
			CustomerID: "C1",
			Lines:      []domain.RequestLine{line("P1", 2), line("P2", 1), line("P1", 2)},
		})
		wantValidation(t, err, domain.ErrInsufficientStock, "P1", "P1")
		wantNoMutation(t, f)
	})

	t.Run("rejects a sum that would overflow", func(t *testing.T) {
		f := newFixture()
		f.store.PutCustomer(customer.Customer{ID: "C1"})
		f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})

		_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{
			CustomerID: "C1",
			Lines:      []domain.RequestLine{line("P1", math.MaxInt), line("P1", math.MaxInt)},
		})
		wantValidation(t, err, domain.ErrInvalidRequest, "P1")
		if calls := f.log.list(); len(calls) != 0 {
			t.Fatalf("calls: want none got=%v", calls)
		}
		if p, _ := f.store.Product("P1"); p.Quantity != 5 {
			t.Fatalf("P1 stock: want=5 got=%d", p.Quantity)
		}
	})
}

func TestCreateOrderInvalidRequest(t *testing.T) {
	f := newFixture()
	_, err := f.service().CreateOrder(context.Background(), domain.OrderRequest{CustomerID: "C1"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("want ErrInvalidRequest, got %v", err)
	}
	if got := f.log.list(); len(got) != 0 {
		t.Fatalf("no collaborator should be called, got %v", got)
	}
}

func TestCreateOrderPropagatesCollaboratorErrors(t *testing.T) {
	boom := errors.New("connection reset")

	cases := []struct {
		name   string
		inject func(f *fixture)
	}{
		{"lookup", func(f *fixture) { f.products.findErr = boom }},
		{"persist", func(f *fixture) { f.orders.createErr = boom }},
		{"update", func(f *fixture) { f.products.updateErr = boom }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			f.store.PutCustomer(customer.Customer{ID: "C1"})
			f.store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(10), Quantity: 5})
			tc.inject(f)

			_, err := f.service().CreateOrder(ctx, domain.OrderRequest{CustomerID: "C1", Lines: []domain.RequestLine{line("P1", 2)}})
			if err != boom {
				t.Fatalf("want the collaborator error unmodified, got %v", err)
			}
			if _, ok := domain.AsValidation(err); ok {
				t.Fatalf("collaborator error must not be a validation error")
			}
			if p, _ := f.store.Product("P1"); p.Quantity != 5 {
				t.Fatalf("P1 stock: want=5 got=%d", p.Quantity)
			}
			if f.rec.outcomes["error"] != 1 {
				t.Fatalf("recorder: want error=1 got=%v", f.rec.outcomes)
			}
		})
	}
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.service().GetOrder(context.Background(), "missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"created":             nil,
		"invalid_request":     &domain.ValidationError{Err: domain.ErrInvalidRequest},
		"customer_not_found":  &domain.ValidationError{Err: domain.ErrCustomerNotFound},
		"no_products_found":   &domain.ValidationError{Err: domain.ErrNoProductsFound},
		"products_not_found":  &domain.ValidationError{Err: domain.ErrProductsNotFound},
		"insufficient_stock":  &domain.ValidationError{Err: domain.ErrInsufficientStock},
		"invariant_violation": domain.ErrInvariantViolation,
		"error":               errors.New("io"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v): want=%s got=%s", err, want, got)
		}
	}
}

func TestReconcileRejectsUnknownProduct(t *testing.T) {
	_, err := reconcile([]domain.OrderLineItem{{ProductID: "P9", Quantity: 1}}, map[string]inventory.Product{})
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("want ErrInvariantViolation, got %v", err)
	}
}
