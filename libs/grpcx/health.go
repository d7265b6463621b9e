package grpcx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReadyCheck checks a remote grpc.health.v1 service. The connection is dialed on
// first use and shared by later checks, which may run concurrently.
func HealthReadyCheck(addr string, service string) func(context.Context) error {
	var (
		mu   sync.Mutex
		conn *grpc.ClientConn
	)
	connect := func(ctx context.Context) (*grpc.ClientConn, error) {
		mu.Lock()
		defer mu.Unlock()
		if conn != nil {
			return conn, nil
		}
		c, err := Dial(ctx, addr, DialOptions{Timeout: 2 * time.Second})
		if err != nil {
			return nil, err
		}
		conn = c
		return conn, nil
	}
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc health address not configured")
		}
		c, err := connect(ctx)
		if err != nil {
			return err
		}
		return CheckHealth(ctx, c, service)
	}
}

func CheckHealth(ctx context.Context, conn grpc.ClientConnInterface, service string) error {
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc health %q: %s", service, resp.GetStatus())
	}
	return nil
}
