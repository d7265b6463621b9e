package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func Getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// SignalContext is cancelled on SIGINT or SIGTERM so workers and servers can drain.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
