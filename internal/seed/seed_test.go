package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/infrastructure/memory"
)

const fixture = `
customers:
  - id: C1
    name: Ada
    email: ada@example.com
products:
  - id: P1
    name: Widget
    price: "10.50"
    quantity: 5
  - id: P2
    price: 3
    quantity: 0
`

func TestLoadAndApply(t *testing.T) {
	fx, err := Load(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fx.Customers) != 1 || len(fx.Products) != 2 {
		t.Fatalf("fixture: want 1 customer 2 products got=%d/%d", len(fx.Customers), len(fx.Products))
	}

	store := memory.NewStore()
	store.PutProduct(inventory.Product{ID: "P1", Price: decimal.NewFromInt(1), Quantity: 99})

	if err := fx.Apply(context.Background(), store.Customers(), store.Products()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p1, _ := store.Product("P1"); p1.Quantity != 99 {
		t.Fatalf("existing P1 overwritten: got=%+v", p1)
	}
	p2, ok := store.Product("P2")
	if !ok || !p2.Price.Equal(decimal.NewFromInt(3)) || p2.Quantity != 0 {
		t.Fatalf("P2: got=%+v ok=%v", p2, ok)
	}
	if !fx.Products[0].Price.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("P1 price: want=10.5 got=%s", fx.Products[0].Price)
	}
	if _, ok, _ := store.Customers().FindByID(context.Background(), "C1"); !ok {
		t.Fatalf("C1 not seeded")
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"bad price":      "products:\n  - id: P1\n    price: abc\n",
		"negative stock": "products:\n  - id: P1\n    price: \"1\"\n    quantity: -1\n",
		"missing id":     "customers:\n  - name: Ada\n",
		"malformed yaml": "customers: [",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(in)); err == nil {
				t.Fatalf("want error for %q", in)
			}
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	fx, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fx.Customers)+len(fx.Products) != 0 {
		t.Fatalf("empty fixture produced records: %+v", fx)
	}
}
