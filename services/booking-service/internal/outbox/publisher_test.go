package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

type fakeSource struct {
	records   []Record
	published []string
}

func (s *fakeSource) PublishOutbox(_ context.Context, limit int, fn func([]Record) error) (int, error) {
	batch := s.records
	if len(batch) > limit {
		batch = batch[:limit]
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := fn(batch); err != nil {
		return 0, err
	}
	for _, r := range batch {
		s.published = append(s.published, r.EventID)
	}
	s.records = s.records[len(batch):]
	return len(batch), nil
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestPublishBatch(t *testing.T) {
	src := &fakeSource{records: []Record{
		{Seq: 1, EventID: "e1", Event: NewEvent("appointment", "a1", AppointmentBooked, map[string]string{"appointment_id": "a1"})},
		{Seq: 2, EventID: "e2", Event: NewEvent("appointment", "a1", AppointmentCancelled, map[string]string{"appointment_id": "a1"})},
		{Seq: 3, EventID: "e3", Event: NewEvent("appointment", "a2", AppointmentBooked, map[string]string{"appointment_id": "a2"})},
	}}
	w := &fakeWriter{}
	p := NewPublisher(src, w, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{BatchSize: 2})

	n, err := p.PublishBatch(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 published, got %d %v", n, err)
	}
	if len(w.msgs) != 2 || w.msgs[0].Topic != AppointmentBooked || string(w.msgs[0].Key) != "a1" {
		t.Fatalf("unexpected messages: %+v", w.msgs)
	}
	if meta := kafkax.ExtractEventMeta(w.msgs[1]); meta.EventID != "e2" || meta.EventType != AppointmentCancelled {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestPublishBatchKeepsRecordsOnWriteFailure(t *testing.T) {
	src := &fakeSource{records: []Record{{Seq: 1, EventID: "e1", Event: NewEvent("appointment", "a1", AppointmentBooked, nil)}}}
	p := NewPublisher(src, &fakeWriter{err: errors.New("broker down")}, slog.New(slog.NewTextHandler(io.Discard, nil)), PublisherConfig{})

	if _, err := p.PublishBatch(context.Background()); err == nil {
		t.Fatal("expected write error")
	}
	if len(src.records) != 1 || len(src.published) != 0 {
		t.Fatal("records must stay unpublished when kafka rejects the batch")
	}
}
