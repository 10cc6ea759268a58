package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-stock-service/internal/order/domain"
)

const idempotencyHeader = "Idempotency-Key"

type OrderService interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

// Idempotency maps a client-supplied key to the order it created.
type Idempotency interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Remember(ctx context.Context, key, orderID string) error
	Forget(ctx context.Context, key string) error
}

type Handler struct {
	log     *slog.Logger
	service OrderService
	idem    Idempotency
	tracer  trace.Tracer
}

// NewHandler builds the order routes. idem may be nil, in which case the
// Idempotency-Key header is ignored.
func NewHandler(log *slog.Logger, service OrderService, idem Idempotency) *Handler {
	return &Handler{
		log:     log,
		service: service,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	CustomerID string `json:"customer_id"`
	Products   []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
}

type customerResp struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type orderLineResp struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResp struct {
	ID            string          `json:"id"`
	Customer      customerResp    `json:"customer"`
	OrderProducts []orderLineResp `json:"order_products"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

type errorResp struct {
	Error      string   `json:"error"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP CreateOrder")
	defer span.End()

	var body createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid body"})
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if key != "" && h.idem != nil {
		if id, ok, err := h.idem.Lookup(ctx, key); err != nil {
			h.log.WarnContext(ctx, "idempotency lookup failed", "err", err)
		} else if ok && h.replay(ctx, w, key, id) {
			return
		}
	}

	req := domain.OrderRequest{CustomerID: body.CustomerID, Lines: make([]domain.RequestLine, 0, len(body.Products))}
	for _, p := range body.Products {
		req.Lines = append(req.Lines, domain.RequestLine{ProductID: p.ID, Quantity: p.Quantity})
	}

	o, err := h.service.CreateOrder(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Remember(ctx, key, o.ID); err != nil {
			h.log.WarnContext(ctx, "idempotency remember failed", "order_id", o.ID, "err", err)
		}
	}
	writeJSON(w, http.StatusCreated, toResp(o))
}

// replay answers with the order a key already produced. It reports false
// when that order is gone, after dropping the key so the request is
// processed afresh.
func (h *Handler) replay(ctx context.Context, w http.ResponseWriter, key, id string) bool {
	o, err := h.service.GetOrder(ctx, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		h.log.WarnContext(ctx, "idempotency key points at a missing order", "order_id", id)
		if err := h.idem.Forget(ctx, key); err != nil {
			h.log.WarnContext(ctx, "idempotency forget failed", "err", err)
		}
		return false
	}
	if err != nil {
		h.writeError(ctx, w, err)
		return true
	}
	w.Header().Set("Idempotent-Replayed", "true")
	writeJSON(w, http.StatusOK, toResp(o))
	return true
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP GetOrder")
	defer span.End()

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if v, ok := domain.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: v.Error(), ProductIDs: v.ProductIDs})
		return
	}
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	h.log.ErrorContext(ctx, "request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal server error"})
}

func toResp(o domain.Order) orderResp {
	lines := make([]orderLineResp, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResp{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	return orderResp{
		ID:            o.ID,
		Customer:      customerResp{ID: o.Customer.ID, Name: o.Customer.Name, Email: o.Customer.Email},
		OrderProducts: lines,
		Total:         o.Total,
		CreatedAt:     o.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
