package outbox

import (
	"encoding/json"
	"time"

	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
)

const (
	AppointmentBooked      = "booking.appointment.booked.v1"
	AppointmentRescheduled = "booking.appointment.rescheduled.v1"
	AppointmentCancelled   = "booking.appointment.cancelled.v1"
	AppointmentConfirmed   = "booking.appointment.confirmed.v1"
	ReminderSent           = "scheduler.reminder.sent.v1"
	ReminderDLQ            = "scheduler.reminder.dlq.v1"
)

// Event is the envelope written to the outbox inside the mutating transaction.
// The Kafka topic equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Trace         otelx.TraceContext
}

// Record is a stored event awaiting publication.
type Record struct {
	Seq       int64
	EventID   string
	Event     Event
	CreatedAt time.Time
}

// NewEvent marshals payload to JSON. An unmarshalable payload is stored as an error document.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}
}
