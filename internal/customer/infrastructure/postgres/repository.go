package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/order-stock-service/internal/customer/domain"
	"github.com/dmehra2102/order-stock-service/pkg/pgtx"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) FindByID(ctx context.Context, id string) (domain.Customer, bool, error) {
	var c domain.Customer
	err := pgtx.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, email, created_at FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("postgres: find customer %q: %w", id, err)
	}
	return c, true, nil
}

func (r *Repository) Create(ctx context.Context, c domain.Customer) error {
	_, err := pgtx.Conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO customers (id, name, email, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Name, c.Email, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create customer %q: %w", c.ID, err)
	}
	return nil
}
