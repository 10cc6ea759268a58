package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/pkg/pgtx"
)

// Repository is the product catalog. Reads made inside a pgtx transaction
// lock the returned rows until that transaction ends.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:  log,
		pool: pool,
	}
}

func (r *Repository) FindAllByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	// Sorted ids give concurrent lockers the same lock order.
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	q := `SELECT id, name, price::text, quantity, updated_at FROM products WHERE id = ANY($1) ORDER BY id`
	if pgtx.InTx(ctx) {
		q += ` FOR UPDATE`
	}

	rows, err := pgtx.Conn(ctx, r.pool).Query(ctx, q, sorted)
	if err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Quantity, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: product %q price %q: %w", p.ID, price, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: find products: %w", err)
	}
	return products, nil
}

// UpdateQuantity applies all updates atomically, joining the caller's
// transaction when there is one.
func (r *Repository) UpdateQuantity(ctx context.Context, updates []domain.StockUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return pgtx.WithinTx(ctx, r.pool, pgx.TxOptions{}, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, u := range updates {
			batch.Queue(`UPDATE products SET quantity=$2, updated_at=now() WHERE id=$1`, u.ProductID, u.Quantity)
		}
		br := pgtx.Conn(ctx, r.pool).SendBatch(ctx, batch)
		for _, u := range updates {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: update stock for %q: %w", u.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				_ = br.Close()
				return fmt.Errorf("postgres: update stock for %q: product not found", u.ProductID)
			}
		}
		return br.Close()
	})
}

func (r *Repository) Create(ctx context.Context, p domain.Product) error {
	_, err := pgtx.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO products (id, name, price, quantity, updated_at) VALUES ($1,$2,$3::numeric,$4,now())
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Price.String(), p.Quantity)
	if err != nil {
		return fmt.Errorf("postgres: create product %q: %w", p.ID, err)
	}
	return nil
}
