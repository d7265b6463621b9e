package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Inbox remembers consumed event ids.
type Inbox interface {
	RecordInbox(ctx context.Context, eventID, eventType string) (bool, error)
}

// Consumer reads events, drops duplicates through the inbox and hands the rest to a handler.
type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(reader, logger, inbox, handler)
}

func NewWithReader(reader MessageReader, logger *slog.Logger, inbox Inbox, handler Handler) *Consumer {
	return &Consumer{reader: reader, logger: logger, inbox: inbox, handler: handler}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.Handle(ctx, msg)
	}
}

// Handle processes one message. It reports whether the handler ran.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	ok, err := c.inbox.RecordInbox(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err)
		span.RecordError(err)
		return false
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return false
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		return false
	}
	return true
}
