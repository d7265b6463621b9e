package kafkax

import (
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

// EventMeta identifies an event on the wire. AggregateID is the message key.
type EventMeta struct {
	EventID     string
	EventType   string
	AggregateID string
}

// ExtractEventMeta reads the event headers. Producers that omit event_id get a
// position-based id, since keys name entities and repeated upserts share them.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:     HeaderValue(msg.Headers, headerEventID),
		EventType:   HeaderValue(msg.Headers, headerEventType),
		AggregateID: string(msg.Key),
	}
	if meta.EventID == "" {
		meta.EventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

// Headers encodes the id and type; the aggregate travels as the message key.
func (m EventMeta) Headers() []kafka.Header {
	return []kafka.Header{
		{Key: headerEventID, Value: []byte(m.EventID)},
		{Key: headerEventType, Value: []byte(m.EventType)},
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for i := len(headers) - 1; i >= 0; i-- {
		if headers[i].Key == key {
			return string(headers[i].Value)
		}
	}
	return ""
}

// SplitBrokers parses a comma separated KAFKA_BROKERS value.
func SplitBrokers(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' })
	brokers := fields[:0]
	for _, b := range fields {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
