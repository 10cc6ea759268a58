package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/order-stock-service/internal/config"
	customerpg "github.com/dmehra2102/order-stock-service/internal/customer/infrastructure/postgres"
	inventorypg "github.com/dmehra2102/order-stock-service/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/order-stock-service/internal/order/application"
	ordergrpc "github.com/dmehra2102/order-stock-service/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/order-stock-service/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/order-stock-service/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/order-stock-service/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/order-stock-service/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/order-stock-service/internal/seed"
	"github.com/dmehra2102/order-stock-service/pkg/idempotency"
	"github.com/dmehra2102/order-stock-service/pkg/logging"
	"github.com/dmehra2102/order-stock-service/pkg/metrics"
	"github.com/dmehra2102/order-stock-service/pkg/outbox"
	"github.com/dmehra2102/order-stock-service/pkg/pgtx"
	"github.com/dmehra2102/order-stock-service/pkg/shutdown"
	"github.com/dmehra2102/order-stock-service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", config.ServiceName)

	sigCtx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(sigCtx)

	tp, err := tracing.Init(ctx, config.ServiceName, cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewOrderMetrics(reg, config.ServiceName)

	var (
		customers application.CustomerDirectory
		products  application.ProductCatalog
		seedTo    func(seed.Fixture) error
		orders    application.OrderStore
		tx        application.Transactor
		probe     = func(context.Context) error { return nil }
		hooks     []func(context.Context) error
	)

	switch cfg.Storage {
	case config.StorageMemory:
		store := memory.NewStore()
		customers, products, orders, tx = store.Customers(), store.Products(), store.Orders(), store
		seedTo = func(fx seed.Fixture) error { return fx.Apply(ctx, store.Customers(), store.Products()) }
		log.Warn("using in-memory storage, data is lost on exit")
	default:
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := orderpg.Migrate(ctx, pool); err != nil {
			log.Error("pg migrate failed", "err", err)
			os.Exit(1)
		}

		customerRepo, productRepo := customerpg.NewRepository(log, pool), inventorypg.NewRepository(log, pool)
		customers, products = customerRepo, productRepo
		seedTo = func(fx seed.Fixture) error { return fx.Apply(ctx, customerRepo, productRepo) }
		orders = orderpg.NewRepository(log, pool)
		tx = pgtx.NewTransactor(pool)
		probe = pool.Ping

		if len(cfg.KafkaBrokers) > 0 {
			writer := orderkafka.NewWriter(cfg.KafkaBrokers)
			hooks = append(hooks, func(context.Context) error { return writer.Close() })

			dispatch := outbox.NewDispatcher(log, writer, cfg.OrderEventsTopic)
			relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, config.ServiceName+"-relay")
			g.Go(func() error { return relay.Run(ctx) })
		} else {
			log.Warn("KAFKA_ADDR unset, OrderCreated events stay in the outbox")
		}
	}

	if cfg.SeedFile != "" {
		fx, err := seed.LoadFile(cfg.SeedFile)
		if err == nil {
			err = seedTo(fx)
		}
		if err != nil {
			log.Error("seed failed", "file", cfg.SeedFile, "err", err)
			os.Exit(1)
		}
		log.Info("seeded catalog", "customers", len(fx.Customers), "products", len(fx.Products))
	}

	svc := application.NewService(customers, products, orders, tx,
		application.WithLogger(log),
		application.WithRecorder(rec),
	)

	var (
		idemHTTP orderhttp.Idempotency
		dedupe   orderkafka.Deduper
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		hooks = append(hooks, func(context.Context) error { return rdb.Close() })
		idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		idemHTTP, dedupe = idem, idem
	}

	if cfg.OrderRequestsTopic != "" {
		consumer := orderkafka.NewConsumer(log, cfg.KafkaBrokers, cfg.OrderRequestsTopic, cfg.ConsumerGroup, svc, dedupe)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, middleware.Timeout(cfg.RequestTimeout))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", metrics.Handler(reg))
	r.Mount("/", orderhttp.NewHandler(log, svc, idemHTTP).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "order-http"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	if cfg.GRPCAddr != "off" {
		hs := ordergrpc.NewHealthServer(log, config.ServiceName)
		if err := hs.Run(cfg.GRPCAddr); err != nil {
			log.Error("grpc listen failed", "err", err)
			os.Exit(1)
		}
		go hs.Watch(ctx, 5*time.Second, probe)
		hooks = append(hooks, hs.Shutdown)
		log.Info("grpc health listening", "addr", cfg.GRPCAddr)
	}

	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	<-ctx.Done()

	hooks = append([]func(context.Context) error{srv.Shutdown}, hooks...)
	hooks = append(hooks, tp.Shutdown)
	if err := shutdown.Drain(10*time.Second, hooks...); err != nil {
		log.Error("shutdown incomplete", "err", err)
	}
	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", "err", err)
	}
	log.Info("order-service shutdown complete")
}
