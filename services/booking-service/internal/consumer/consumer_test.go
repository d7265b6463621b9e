package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type memInbox struct {
	seen map[string]bool
	err  error
}

func (m *memInbox) RecordInbox(_ context.Context, eventID, _ string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

type sliceReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func newTestConsumer(inbox Inbox, handled *[]string) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWithReader(&sliceReader{}, logger, inbox, func(_ context.Context, msg kafka.Message) error {
		*handled = append(*handled, string(msg.Value))
		return nil
	})
}

func TestHandleDropsDuplicates(t *testing.T) {
	var handled []string
	c := newTestConsumer(&memInbox{seen: map[string]bool{}}, &handled)

	headers := kafkax.EventMeta{EventID: "evt-1", EventType: "business.client.upserted.v1"}.Headers()
	msg := kafka.Message{Topic: "business.client.upserted.v1", Value: []byte("a"), Headers: headers}
	if !c.Handle(context.Background(), msg) {
		t.Fatalf("first delivery should be handled")
	}
	if c.Handle(context.Background(), msg) {
		t.Fatalf("duplicate delivery should be dropped")
	}
	if len(handled) != 1 {
		t.Fatalf("handled %d messages", len(handled))
	}
}

func TestHandleWithoutEventIDUsesOffset(t *testing.T) {
	var handled []string
	c := newTestConsumer(&memInbox{seen: map[string]bool{}}, &handled)

	// Two upserts of the same entity share a key but are distinct events.
	first := kafka.Message{Topic: "business.client.upserted.v1", Key: []byte("client-1"), Value: []byte("v1"), Offset: 10}
	second := kafka.Message{Topic: "business.client.upserted.v1", Key: []byte("client-1"), Value: []byte("v2"), Offset: 11}
	c.Handle(context.Background(), first)
	c.Handle(context.Background(), second)
	if len(handled) != 2 {
		t.Fatalf("handled %v, want both versions", handled)
	}
}

func TestHandleInboxFailureSkipsHandler(t *testing.T) {
	var handled []string
	c := newTestConsumer(&memInbox{err: errors.New("db down")}, &handled)
	if c.Handle(context.Background(), kafka.Message{Topic: "t", Value: []byte("x")}) {
		t.Fatalf("handler must not run when the inbox fails")
	}
	if len(handled) != 0 {
		t.Fatalf("handled %v", handled)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var handled []string
	reader := &sliceReader{msgs: []kafka.Message{{Topic: "t", Value: []byte("x"), Offset: 1}}}
	c := NewWithReader(reader, slog.New(slog.NewTextHandler(io.Discard, nil)), &memInbox{seen: map[string]bool{}}, func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Value))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
	if !reader.closed {
		t.Fatalf("reader not closed")
	}
}
