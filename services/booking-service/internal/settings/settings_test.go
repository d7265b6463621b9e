package settings

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/refdata"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_CONSUME_TOPICS", "")

	s, err := Load("booking-service")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Port != "8083" || s.DatabaseURL != "" || s.ServiceName != "booking-service" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if len(s.ConsumeTopics) != len(refdata.Topics) {
		t.Fatalf("consume topics = %v", s.ConsumeTopics)
	}
	if s.Reminders.Interval != 2*time.Second || s.Reminders.MaxAttempts != 5 {
		t.Fatalf("reminder settings = %+v", s.Reminders)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REMINDER_BACKOFF", "30s")
	t.Setenv("REMINDER_WORKER_ENABLED", "false")
	t.Setenv("KAFKA_CONSUME_TOPICS", "a, b")
	t.Setenv("BOOKING_GRPC_ADDR", "booking-service:9093")

	s, err := Load("booking-service")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Reminders.Backoff != 30*time.Second || s.ReminderWorkerEnabled || s.BookingGRPCAddr != "booking-service:9093" {
		t.Fatalf("overrides ignored: %+v", s)
	}
	if len(s.ConsumeTopics) != 2 || s.ConsumeTopics[1] != "b" {
		t.Fatalf("topics = %v", s.ConsumeTopics)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := Load("booking-service"); err == nil {
		t.Fatalf("expected an error for an invalid port")
	}
}
