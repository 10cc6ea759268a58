// Package seed loads customers and products from a YAML fixture into
// whichever storage backend the service runs on.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
)

type CustomerWriter interface {
	Create(ctx context.Context, c customer.Customer) error
}

type ProductWriter interface {
	Create(ctx context.Context, p inventory.Product) error
}

type yamlFixture struct {
	Customers []yamlCustomer `yaml:"customers"`
	Products  []yamlProduct  `yaml:"products"`
}

type yamlCustomer struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type yamlProduct struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Quantity int    `yaml:"quantity"`
}

type Fixture struct {
	Customers []customer.Customer
	Products  []inventory.Product
}

func LoadFile(path string) (Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixture{}, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses a fixture. Prices are decimal strings; negative prices or
// quantities are rejected.
func Load(r io.Reader) (Fixture, error) {
	var raw yamlFixture
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return Fixture{}, fmt.Errorf("seed: decode: %w", err)
	}

	now := time.Now().UTC()
	var fx Fixture
	for _, c := range raw.Customers {
		if c.ID == "" {
			return Fixture{}, fmt.Errorf("seed: customer without id")
		}
		fx.Customers = append(fx.Customers, customer.Customer{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: now})
	}
	for _, p := range raw.Products {
		if p.ID == "" {
			return Fixture{}, fmt.Errorf("seed: product without id")
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return Fixture{}, fmt.Errorf("seed: product %q price: %w", p.ID, err)
		}
		if price.IsNegative() || p.Quantity < 0 {
			return Fixture{}, fmt.Errorf("seed: product %q has negative price or quantity", p.ID)
		}
		fx.Products = append(fx.Products, inventory.Product{ID: p.ID, Name: p.Name, Price: price, Quantity: p.Quantity, UpdatedAt: now})
	}
	return fx, nil
}

// Apply writes the fixture. Records that already exist are left untouched.
func (fx Fixture) Apply(ctx context.Context, customers CustomerWriter, products ProductWriter) error {
	for _, c := range fx.Customers {
		if err := customers.Create(ctx, c); err != nil {
			return err
		}
	}
	for _, p := range fx.Products {
		if err := products.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
