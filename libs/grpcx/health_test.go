package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthReadyCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hs := health.NewServer()
	hs.SetServingStatus("booking", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() {
		_ = srv.Serve(lis)
	}()
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	check := HealthReadyCheck(lis.Addr().String(), "booking")
	if err := check(ctx); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	hs.SetServingStatus("booking", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := check(ctx); err == nil {
		t.Fatal("expected error for NOT_SERVING")
	}
}

func TestHealthReadyCheckRequiresAddr(t *testing.T) {
	if err := HealthReadyCheck("", "booking")(context.Background()); err == nil {
		t.Fatal("expected error when address is empty")
	}
}

func TestHealthReadyCheckConcurrent(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := health.NewServer()
	hs.SetServingStatus("booking", healthpb.HealthCheckResponse_SERVING)
	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	check := HealthReadyCheck(lis.Addr().String(), "booking")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- check(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("check: %v", err)
		}
	}
}
