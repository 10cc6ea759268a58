package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/order-stock-service/internal/order/domain"
	"github.com/dmehra2102/order-stock-service/pkg/tracing"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

// Deduper remembers which topic/partition/offset triples were already handled.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
}

type orderRequestMsg struct {
	CustomerID string `json:"customer_id"`
	Products   []struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	} `json:"products"`
}

// Consumer runs the order workflow for every request published on the
// intake topic.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	orders OrderCreator
	dedupe Deduper
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, orders OrderCreator, dedupe Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		orders: orders,
		dedupe: dedupe,
		tracer: otel.Tracer("order-intake"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			c.log.ErrorContext(ctx, "order request failed", "offset", msg.Offset, "partition", msg.Partition, "err", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.WarnContext(ctx, "commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// handle processes one message. Rejected requests are not errors: the
// message is consumed and the rejection logged.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if c.dedupe != nil {
		key := c.dedupe.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.dedupe.Seen(ctx, key)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if seen {
			c.log.InfoContext(ctx, "duplicate message skipped", "key", key)
			return nil
		}
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderRequest", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", msg.Topic),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)

	var body orderRequestMsg
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		return fmt.Errorf("unmarshal order request: %w", err)
	}

	req := domain.OrderRequest{CustomerID: body.CustomerID, Lines: make([]domain.RequestLine, 0, len(body.Products))}
	for _, p := range body.Products {
		req.Lines = append(req.Lines, domain.RequestLine{ProductID: p.ID, Quantity: p.Quantity})
	}

	o, err := c.orders.CreateOrder(msgCtx, req)
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.log.InfoContext(msgCtx, "order request rejected", "customer_id", req.CustomerID, "reason", verr.Error())
		return nil
	case err != nil:
		return err
	}
	c.log.InfoContext(msgCtx, "order created from intake", "order_id", o.ID)
	return nil
}
