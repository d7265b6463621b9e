package reminders

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DispatcherConfig struct {
	Interval    time.Duration
	BatchSize   int
	Backoff     time.Duration
	Lease       time.Duration
	Concurrency int
	SendTimeout time.Duration
	MaxAttempts int
}

// Dispatcher sends due reminder jobs. Jobs are claimed one by one with an
// attempts-guarded update, so concurrent dispatchers never send a job twice.
type Dispatcher struct {
	store  storage.Store
	sender notify.Sender
	logger *slog.Logger
	cfg    DispatcherConfig
	now    func() time.Time
	tracer trace.Tracer
}

func NewDispatcher(store storage.Store, sender notify.Sender, logger *slog.Logger, cfg DispatcherConfig, now func() time.Time) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:  store,
		sender: sender,
		logger: logger,
		cfg:    cfg,
		now:    now,
		tracer: otel.Tracer("reminders"),
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.logger.Error("reminder dispatch failed", "err", err)
			}
		}
	}
}

// DispatchDue processes up to BatchSize due jobs and returns how many this call claimed.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	jobs, err := d.store.DueJobs(ctx, d.now().UTC(), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var processed atomic.Int64
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return int(processed.Load()), ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(job model.ReminderJob) {
			defer wg.Done()
			defer func() { <-sem }()
			if d.dispatch(ctx, job) {
				processed.Add(1)
			}
		}(job)
	}
	wg.Wait()
	return int(processed.Load()), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, job model.ReminderJob) bool {
	now := d.now().UTC()
	claimed, ok, err := d.store.ClaimJob(ctx, job.ID, job.Attempts, now.Add(d.cfg.Lease))
	if err != nil {
		d.logger.Error("reminder claim failed", "err", err, "job_id", job.ID)
		return false
	}
	if !ok {
		return false
	}

	jobCtx := otelx.ContextWithTraceContext(ctx, claimed.Traceparent, claimed.Tracestate)
	jobCtx, span := d.tracer.Start(jobCtx, "reminders.dispatch", trace.WithAttributes(
		attribute.String("reminder.job_id", claimed.ID),
		attribute.String("reminder.channel", string(claimed.Channel)),
		attribute.Int("reminder.attempt", claimed.Attempts),
	))
	defer span.End()

	msg, err := d.compose(jobCtx, claimed)
	if err == nil {
		sendCtx, cancel := context.WithTimeout(jobCtx, d.cfg.SendTimeout)
		err = d.sender.Send(sendCtx, msg)
		cancel()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.finalize(jobCtx, claimed, err)
	return true
}

func (d *Dispatcher) finalize(ctx context.Context, job model.ReminderJob, sendErr error) {
	now := d.now().UTC()
	logger := d.logger.With("job_id", job.ID, "appointment_id", job.AppointmentID, "attempt", job.Attempts)

	var upd storage.JobUpdate
	var events []outbox.Event
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.cfg.MaxAttempts
	}

	switch {
	case sendErr == nil:
		upd = storage.JobUpdate{Status: model.JobSent, SentAt: &now, UpdatedAt: now}
		events = append(events, outbox.NewEvent("reminder_job", job.AppointmentID, outbox.ReminderSent, jobPayload(job, now, "")))
	case !notify.IsTransient(sendErr) || job.Attempts >= maxAttempts:
		upd = storage.JobUpdate{Status: model.JobFailed, LastError: sendErr.Error(), UpdatedAt: now}
		events = append(events, outbox.NewEvent("reminder_job", job.AppointmentID, outbox.ReminderDLQ, jobPayload(job, now, sendErr.Error())))
	default:
		upd = storage.JobUpdate{
			Status:        model.JobPending,
			LastError:     sendErr.Error(),
			NextAttemptAt: now.Add(d.backoff(job.Attempts)),
			UpdatedAt:     now,
		}
	}

	ok, err := d.store.FinalizeJob(ctx, job.ID, job.Attempts, upd, events...)
	switch {
	case err != nil:
		logger.Error("reminder finalize failed", "err", err)
	case !ok:
		logger.Warn("reminder changed while sending; result discarded", "status", upd.Status)
	case upd.Status == model.JobSent:
		logger.Info("reminder sent", "channel", job.Channel)
	case upd.Status == model.JobFailed:
		logger.Warn("reminder failed permanently", "err", sendErr)
	default:
		logger.Info("reminder send failed; retry scheduled", "err", sendErr, "next_attempt_at", upd.NextAttemptAt)
	}
}

// backoff doubles per attempt: Backoff, 2*Backoff, 4*Backoff, capped at one day.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := d.cfg.Backoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= 24*time.Hour {
			return 24 * time.Hour
		}
	}
	return delay
}

func (d *Dispatcher) compose(ctx context.Context, job model.ReminderJob) (notify.Message, error) {
	appt, err := d.store.GetAppointment(ctx, job.AppointmentID)
	if err != nil {
		return notify.Message{}, notify.Transient(err)
	}
	if !appt.Status.Blocking() {
		return notify.Message{}, errors.New("appointment is cancelled")
	}

	data := notify.TemplateData{ServiceName: appt.ServiceName, HoursBefore: job.OffsetHours, Start: appt.StartTime}
	if client, err := d.store.GetClient(ctx, appt.ClientID); err == nil {
		data.ClientName = client.Name
	}
	if pro, err := d.store.GetProfessional(ctx, appt.ProfessionalID); err == nil {
		data.ProfessionalName = pro.Name
		data.Start = appt.StartTime.In(pro.Location())
	}
	cfg, err := LoadConfig(ctx, d.store, appt.ProfessionalID)
	if err != nil {
		return notify.Message{}, notify.Transient(err)
	}

	return notify.Message{
		Channel:   job.Channel,
		Recipient: job.Recipient,
		Subject:   "Reminder: " + appt.ServiceName,
		Body:      notify.Render(cfg.Template, data),
	}, nil
}

func jobPayload(job model.ReminderJob, at time.Time, reason string) map[string]any {
	payload := map[string]any{
		"job_id":          job.ID,
		"appointment_id":  job.AppointmentID,
		"professional_id": job.ProfessionalID,
		"channel":         job.Channel,
		"recipient":       job.Recipient,
		"fire_at":         job.FireAt.UTC().Format(time.RFC3339),
		"attempts":        job.Attempts,
	}
	if reason == "" {
		payload["sent_at"] = at.Format(time.RFC3339)
	} else {
		payload["error_reason"] = reason
		payload["failed_at"] = at.Format(time.RFC3339)
	}
	return payload
}
