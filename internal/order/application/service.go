package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	customer "github.com/dmehra2102/order-stock-service/internal/customer/domain"
	inventory "github.com/dmehra2102/order-stock-service/internal/inventory/domain"
	"github.com/dmehra2102/order-stock-service/internal/order/domain"
)

type Service struct {
	log       *slog.Logger
	customers CustomerDirectory
	products  ProductCatalog
	orders    OrderStore
	tx        Transactor
	rec       Recorder
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithRecorder(rec Recorder) Option {
	return func(s *Service) { s.rec = rec }
}

func NewService(customers CustomerDirectory, products ProductCatalog, orders OrderStore, tx Transactor, opts ...Option) *Service {
	s := &Service{
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		customers: customers,
		products:  products,
		orders:    orders,
		tx:        tx,
		tracer:    otel.Tracer("order-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates the request against the customer directory and the
// catalog, persists the priced order and debits stock. Validation failures
// are *domain.ValidationError; collaborator errors are returned as is.
//
// Catalog reads through the stock write-back run in one Transactor unit, so
// concurrent orders for the same product serialize on the product rows and
// cannot both pass the stock check against the same quantity.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder", trace.WithAttributes(
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.lines", len(req.Lines)),
	))
	defer span.End()
	start := time.Now()

	order, err := s.createOrder(ctx, req)
	s.finish(ctx, span, start, order, err)
	return order, err
}

func (s *Service) createOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}

	c, err := s.findCustomer(ctx, req.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		snapshot, err := s.findProducts(ctx, req)
		if err != nil {
			return err
		}
		if err := checkStock(req, snapshot); err != nil {
			return err
		}
		lines, err := s.price(ctx, req, snapshot)
		if err != nil {
			return err
		}

		created, err := s.orders.Create(ctx, domain.NewOrder{Customer: c, Lines: lines})
		if err != nil {
			return err
		}
		if len(created.Lines) != len(lines) {
			return fmt.Errorf("%w: stored %d lines for %d requested", domain.ErrInvariantViolation, len(created.Lines), len(lines))
		}

		updates, err := reconcile(created.Lines, snapshot)
		if err != nil {
			return err
		}
		if err := s.products.UpdateQuantity(ctx, updates); err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) findCustomer(ctx context.Context, id string) (customer.Customer, error) {
	c, ok, err := s.customers.FindByID(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}
	if !ok {
		return customer.Customer{}, &domain.ValidationError{Err: domain.ErrCustomerNotFound}
	}
	return c, nil
}

// findProducts returns the catalog snapshot keyed by product id. Missing ids
// are reported once per request line, in request order.
func (s *Service) findProducts(ctx context.Context, req domain.OrderRequest) (map[string]inventory.Product, error) {
	found, err := s.products.FindAllByID(ctx, req.ProductIDs())
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &domain.ValidationError{Err: domain.ErrNoProductsFound}
	}

	snapshot := make(map[string]inventory.Product, len(found))
	for _, p := range found {
		snapshot[p.ID] = p
	}

	var missing []string
	for _, line := range req.Lines {
		if _, ok := snapshot[line.ProductID]; !ok {
			missing = append(missing, line.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ValidationError{Err: domain.ErrProductsNotFound, ProductIDs: missing}
	}
	return snapshot, nil
}

// checkStock compares each product's stock with the total requested for it
// across all lines, and reports every line of an oversubscribed product.
func checkStock(req domain.OrderRequest, snapshot map[string]inventory.Product) error {
	requested := req.RequestedByProduct()

	var short []string
	for _, line := range req.Lines {
		if snapshot[line.ProductID].Quantity < requested[line.ProductID] {
			short = append(short, line.ProductID)
		}
	}
	if len(short) > 0 {
		return &domain.ValidationError{Err: domain.ErrInsufficientStock, ProductIDs: short}
	}
	return nil
}

func (s *Service) price(ctx context.Context, req domain.OrderRequest, snapshot map[string]inventory.Product) ([]domain.PricedLine, error) {
	lines := make([]domain.PricedLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		p, ok := snapshot[line.ProductID]
		if !ok {
			s.log.ErrorContext(ctx, "product vanished between validation and pricing", "product_id", line.ProductID)
			return nil, fmt.Errorf("%w: no price for product %s", domain.ErrInvariantViolation, line.ProductID)
		}
		lines = append(lines, domain.PricedLine{ProductID: line.ProductID, Quantity: line.Quantity, Price: p.Price})
	}
	return lines, nil
}

// reconcile computes one absolute stock update per distinct product from the
// snapshot taken during validation.
func reconcile(lines []domain.OrderLineItem, snapshot map[string]inventory.Product) ([]inventory.StockUpdate, error) {
	ordered := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := ordered[l.ProductID]; !ok {
			ids = append(ids, l.ProductID)
		}
		ordered[l.ProductID] += l.Quantity
	}

	updates := make([]inventory.StockUpdate, 0, len(ids))
	for _, id := range ids {
		p, ok := snapshot[id]
		if !ok {
			return nil, fmt.Errorf("%w: stored line for unknown product %s", domain.ErrInvariantViolation, id)
		}
		updates = append(updates, inventory.StockUpdate{ProductID: id, Quantity: p.Quantity - ordered[id]})
	}
	return updates, nil
}

func (s *Service) finish(ctx context.Context, span trace.Span, start time.Time, order domain.Order, err error) {
	outcome := Outcome(err)
	if s.rec != nil {
		s.rec.ObserveOrder(outcome, time.Since(start))
	}

	if err == nil {
		span.SetAttributes(attribute.String("order.id", order.ID))
		s.log.InfoContext(ctx, "order created", "order_id", order.ID, "customer_id", order.Customer.ID, "total", order.Total.String())
		return
	}

	span.SetAttributes(attribute.String("order.outcome", outcome))
	if v, ok := domain.AsValidation(err); ok {
		s.log.InfoContext(ctx, "order rejected", "reason", outcome, "product_ids", v.ProductIDs)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.log.ErrorContext(ctx, "order creation failed", "err", err)
}

// Outcome names the result of a CreateOrder call for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, domain.ErrNoProductsFound):
		return "no_products_found"
	case errors.Is(err, domain.ErrProductsNotFound):
		return "products_not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "error"
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, ok, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}
