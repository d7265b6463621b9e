package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Source hands out unpublished records inside a transaction and marks them published when fn succeeds.
type Source interface {
	PublishOutbox(ctx context.Context, limit int, fn func([]Record) error) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	source    Source
	writer    MessageWriter
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(source Source, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func NewKafkaWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(brokers)...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishBatch writes one batch to Kafka and returns how many records were published.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	return p.source.PublishOutbox(ctx, p.batchSize, func(records []Record) error {
		msgs := make([]kafka.Message, 0, len(records))
		for _, r := range records {
			msgCtx := r.Event.Trace.Attach(ctx)
			msg := kafka.Message{
				Topic:   r.Event.EventType,
				Key:     []byte(r.Event.AggregateID),
				Value:   r.Event.Payload,
				Headers: kafkax.EventMeta{EventID: r.EventID, EventType: r.Event.EventType}.Headers(),
			}
			msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
			msgs = append(msgs, msg)
		}
		return p.writer.WriteMessages(ctx, msgs...)
	})
}
