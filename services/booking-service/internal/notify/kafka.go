package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

const NotificationRequested = "notification.requested.v1"

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSender hands messages to an external notification service through a topic.
type KafkaSender struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaSender(writer MessageWriter, topic string) *KafkaSender {
	if topic == "" {
		topic = NotificationRequested
	}
	return &KafkaSender{writer: writer, topic: topic, now: time.Now}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"channel":      string(msg.Channel),
		"recipient":    msg.Recipient,
		"subject":      msg.Subject,
		"body":         msg.Body,
		"requested_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: NotificationRequested}
	km := kafka.Message{
		Topic:   s.topic,
		Key:     []byte(msg.Recipient),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}
	if err := s.writer.WriteMessages(ctx, km); err != nil {
		return Transient(err)
	}
	return nil
}
