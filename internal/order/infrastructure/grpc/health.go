package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServer exposes the standard gRPC health protocol for the order
// service. Status follows a dependency probe run by Watch.
type HealthServer struct {
	log     *slog.Logger
	gs      *grpc.Server
	health  *health.Server
	service string
}

func NewHealthServer(log *slog.Logger, service string) *HealthServer {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{log: log, gs: gs, health: hs, service: service}
}

// Run listens on addr and serves in the background.
func (s *HealthServer) Run(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go s.Serve(lis)
	return nil
}

func (s *HealthServer) Serve(lis net.Listener) {
	if err := s.gs.Serve(lis); err != nil {
		s.log.Error("grpc server stopped", "err", err)
	}
}

// Watch probes check every interval until ctx ends and mirrors the result
// into the health status of both the named service and the server.
func (s *HealthServer) Watch(ctx context.Context, interval time.Duration, check func(ctx context.Context) error) {
	s.probe(ctx, check)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx, check)
		}
	}
}

func (s *HealthServer) probe(ctx context.Context, check func(ctx context.Context) error) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := check(ctx); err != nil {
		s.log.WarnContext(ctx, "dependency probe failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(s.service, status)
	s.health.SetServingStatus("", status)
}

// Shutdown marks the service as not serving and drains in-flight calls,
// forcing a stop once ctx expires.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.gs.Stop()
		return ctx.Err()
	}
}
