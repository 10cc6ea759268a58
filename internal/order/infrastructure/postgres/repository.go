package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/order-stock-service/internal/order/domain"
	"github.com/dmehra2102/order-stock-service/pkg/outbox"
	"github.com/dmehra2102/order-stock-service/pkg/pgtx"
	"github.com/dmehra2102/order-stock-service/pkg/tracing"
)

const eventOrderCreated = "OrderCreated"

type Repository struct {
	log     *slog.Logger
	pool    *pgxpool.Pool
	headers map[string]string
	now     func() time.Time
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{
		log:     log,
		pool:    pool,
		headers: map[string]string{"source": "order-service"},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the order, its lines and an OrderCreated outbox event in one
// transaction, joining the caller's when there is one.
func (r *Repository) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	o := domain.Order{
		ID:        uuid.NewString(),
		Customer:  in.Customer,
		Lines:     make([]domain.OrderLineItem, 0, len(in.Lines)),
		CreatedAt: r.now(),
	}
	for _, l := range in.Lines {
		o.Lines = append(o.Lines, domain.OrderLineItem{
			ID:        uuid.NewString(),
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	o.Total = domain.Total(o.Lines)

	payload, err := json.Marshal(domain.NewOrderCreated(o))
	if err != nil {
		return domain.Order{}, err
	}

	err = pgtx.WithinTx(ctx, r.pool, pgx.TxOptions{}, func(ctx context.Context) error {
		q := pgtx.Conn(ctx, r.pool)

		_, err := q.Exec(ctx, `INSERT INTO orders (id, customer_id, total, created_at) VALUES ($1,$2,$3::numeric,$4)`,
			o.ID, o.Customer.ID, o.Total.String(), o.CreatedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range o.Lines {
			batch.Queue(`INSERT INTO order_products (id, order_id, product_id, quantity, price) VALUES ($1,$2,$3,$4,$5::numeric)`,
				l.ID, o.ID, l.ProductID, l.Quantity, l.Price.String())
		}
		if err := q.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: insert order lines: %w", err)
		}

		ev := outbox.NewEvent("order", o.ID, eventOrderCreated, payload, r.headers, tracing.Traceparent(ctx))
		_, err = q.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, ev.Headers, ev.Traceparent, string(ev.Status))
		if err != nil {
			return fmt.Errorf("postgres: insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (domain.Order, bool, error) {
	q := pgtx.Conn(ctx, r.pool)

	var o domain.Order
	var total string
	err := q.QueryRow(ctx, `
		SELECT o.id, o.total::text, o.created_at, c.id, c.name, c.email, c.created_at
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.id=$1`, id).
		Scan(&o.ID, &total, &o.CreatedAt, &o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("postgres: find order %q: %w", id, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, false, fmt.Errorf("postgres: order %q total %q: %w", id, total, err)
	}

	rows, err := q.Query(ctx, `SELECT id, product_id, quantity, price::text FROM order_products WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("postgres: find order lines %q: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLineItem
		var price string
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &price); err != nil {
			return domain.Order{}, false, fmt.Errorf("postgres: scan order line: %w", err)
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return domain.Order{}, false, fmt.Errorf("postgres: order line %q price %q: %w", l.ID, price, err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, false, fmt.Errorf("postgres: find order lines %q: %w", id, err)
	}
	return o, true, nil
}
