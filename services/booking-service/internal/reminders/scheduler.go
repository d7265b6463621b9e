package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const DefaultMaxAttempts = 5

// Scheduler keeps an appointment's reminder jobs in step with its start time.
// Every method runs on the caller's transaction.
type Scheduler struct {
	maxAttempts int
	now         func() time.Time
}

func NewScheduler(maxAttempts int, now func() time.Time) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{maxAttempts: maxAttempts, now: now}
}

// Plan creates one PENDING job per offset and channel whose fire time is still ahead
// and for which the client has an address.
func (s *Scheduler) Plan(ctx context.Context, tx storage.Tx, appt model.Appointment) (int, error) {
	cfg, err := LoadConfig(ctx, tx, appt.ProfessionalID)
	if err != nil {
		return 0, err
	}
	if !cfg.Enabled {
		return 0, nil
	}
	client, err := tx.GetClient(ctx, appt.ClientID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	now := s.now()
	trace := otelx.CaptureTraceContext(ctx)
	created := 0
	for _, hours := range cfg.OffsetsHours {
		fireAt := appt.StartTime.Add(-time.Duration(hours) * time.Hour)
		if !fireAt.After(now) {
			continue
		}
		for _, ch := range cfg.Channels {
			recipient := client.Recipient(ch)
			if recipient == "" {
				continue
			}
			job := &model.ReminderJob{
				IdempotencyKey: model.ReminderIdempotencyKey(appt.ID, fireAt, ch),
				AppointmentID:  appt.ID,
				ProfessionalID: appt.ProfessionalID,
				Channel:        ch,
				Recipient:      recipient,
				OffsetHours:    hours,
				FireAt:         fireAt.UTC(),
				Status:         model.JobPending,
				MaxAttempts:    s.maxAttempts,
				NextAttemptAt:  fireAt.UTC(),
				Traceparent:    trace.Traceparent,
				Tracestate:     trace.Tracestate,
			}
			ok, err := tx.InsertReminderJob(ctx, job)
			if err != nil {
				return created, fmt.Errorf("insert reminder job: %w", err)
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

// Rebind cancels every PENDING job of the appointment and plans fresh ones at its current start.
func (s *Scheduler) Rebind(ctx context.Context, tx storage.Tx, appt model.Appointment) (cancelled, created int, err error) {
	cancelled, err = s.Cancel(ctx, tx, appt.ID)
	if err != nil {
		return 0, 0, err
	}
	created, err = s.Plan(ctx, tx, appt)
	return cancelled, created, err
}

func (s *Scheduler) Cancel(ctx context.Context, tx storage.Tx, appointmentID string) (int, error) {
	n, err := tx.CancelPendingJobs(ctx, appointmentID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel reminder jobs: %w", err)
	}
	return n, nil
}
