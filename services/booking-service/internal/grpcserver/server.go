package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "booking"

// Health publishes grpc.health.v1 status for the booking service, derived from the
// same readiness checks that back /readyz.
type Health struct {
	server *health.Server
	checks []runtime.ReadyCheck
	logger *slog.Logger
}

func NewHealth(logger *slog.Logger, checks ...runtime.ReadyCheck) *Health {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{server: hs, checks: checks, logger: logger}
}

func (h *Health) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h.server)
}

// Refresh runs the checks once and returns the status it published.
func (h *Health) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if failures := runtime.RunChecks(ctx, h.checks...); len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("readiness check failed", "failures", failures)
	}
	h.server.SetServingStatus(ServiceName, status)
	h.server.SetServingStatus("", status)
	return status
}

func (h *Health) Watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	h.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Start serves gRPC on port until ctx is cancelled.
func Start(ctx context.Context, logger *slog.Logger, port string, h *Health) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	h.Register(srv)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go h.Watch(ctx, 5*time.Second)
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	return nil
}
