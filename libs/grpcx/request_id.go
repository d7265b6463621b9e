package grpcx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

// RequestIDMetadataKey carries the same id as the HTTP X-Request-Id header. gRPC metadata keys are lowercase.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func NewRequestID() string {
	return uuid.NewString()
}
