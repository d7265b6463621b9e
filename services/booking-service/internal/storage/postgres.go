package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

//go:embed schema.sql
var schemaSQL string

const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	pgReader
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pgReader: pgReader{q: pool}, pool: pool}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) WithProfessional(ctx context.Context, professionalID string, fn func(Tx) error) error {
	return p.InTx(ctx, func(tx Tx) error {
		pt := tx.(*pgTx)
		if _, err := pt.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, professionalID); err != nil {
			return fmt.Errorf("lock professional %s: %w", professionalID, err)
		}
		return fn(tx)
	})
}

func (p *Postgres) InTx(ctx context.Context, fn func(Tx) error) error {
	err := p.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx})
	})
	return translate(err)
}

func (p *Postgres) DueJobs(ctx context.Context, now time.Time, limit int) ([]model.ReminderJob, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM reminder_jobs
		WHERE status = 'PENDING' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ReminderJob, error) { return scanJob(row) })
}

func (p *Postgres) ClaimJob(ctx context.Context, id string, seenAttempts int, leaseUntil time.Time) (model.ReminderJob, bool, error) {
	job, err := scanJob(p.pool.QueryRow(ctx, `
		UPDATE reminder_jobs
		SET attempts = attempts + 1,
			next_attempt_at = $3,
			updated_at = now()
		WHERE id = $1 AND status = 'PENDING' AND attempts = $2
		RETURNING `+jobColumns, id, seenAttempts, leaseUntil))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ReminderJob{}, false, nil
	}
	if err != nil {
		return model.ReminderJob{}, false, err
	}
	return job, true, nil
}

func (p *Postgres) FinalizeJob(ctx context.Context, id string, claimedAttempts int, upd JobUpdate, events ...outbox.Event) (bool, error) {
	applied := false
	err := p.InTx(ctx, func(tx Tx) error {
		pt := tx.(*pgTx)
		tag, err := pt.tx.Exec(ctx, `
			UPDATE reminder_jobs
			SET status = $3,
				sent_at = $4,
				last_error = $5,
				next_attempt_at = CASE WHEN $6::timestamptz IS NULL THEN next_attempt_at ELSE $6::timestamptz END,
				updated_at = $7
			WHERE id = $1 AND status = 'PENDING' AND attempts = $2
		`, id, claimedAttempts, string(upd.Status), upd.SentAt, upd.LastError, nullTime(upd.NextAttemptAt), upd.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		for _, evt := range events {
			if err := tx.InsertOutbox(ctx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	return applied, err
}

func (p *Postgres) PublishOutbox(ctx context.Context, limit int, fn func([]outbox.Record) error) (int, error) {
	published := 0
	err := p.pool.InTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate, created_at
			FROM outbox_events
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return err
		}
		records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Record, error) {
			var r outbox.Record
			err := row.Scan(&r.Seq, &r.EventID, &r.Event.AggregateType, &r.Event.AggregateID, &r.Event.EventType,
				&r.Event.Payload, &r.Event.Trace.Traceparent, &r.Event.Trace.Tracestate, &r.CreatedAt)
			return r, err
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := fn(records); err != nil {
			return err
		}
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.Seq)
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

func (p *Postgres) RecordInbox(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if isCode(err, codeUniqueViolation) {
		return false, nil
	}
	return false, err
}

func (p *Postgres) Ready(ctx context.Context) error {
	return db.ReadyCheck(p.pool)(ctx)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if isCode(err, codeExclusionViolation) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return err
}

type pgReader struct {
	q querier
}

const appointmentColumns = `id, professional_id, client_id, staff_id, service_id, service_name, price_cents,
	duration_minutes, start_time, status, payment_status, cancelled_at, cancel_reason, created_at, updated_at, version`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.ClientID, &a.StaffID, &a.ServiceID, &a.ServiceName, &a.PriceCents,
		&a.DurationMinutes, &a.StartTime, &a.Status, &a.PaymentStatus, &a.CancelledAt, &a.CancelReason,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	return a, err
}

func (r pgReader) appointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appointment, error) { return scanAppointment(row) })
}

func (r pgReader) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, notFound(err, "appointment", id)
}

func (r pgReader) ListAppointments(ctx context.Context, professionalID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.appointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND ($2::timestamptz IS NULL OR start_time >= $2)
			AND ($3::timestamptz IS NULL OR start_time < $3)
		ORDER BY start_time ASC
		LIMIT $4
	`, professionalID, nullTime(from), nullTime(to), limit)
}

func (r pgReader) ListBlocking(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	return r.appointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND status <> 'CANCELLED'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, professionalID, from, to)
}

func (r pgReader) PastAppointments(ctx context.Context, clientID, professionalID string, before time.Time) ([]model.Appointment, error) {
	return r.appointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1 AND professional_id = $2 AND start_time < $3
		ORDER BY start_time ASC
	`, clientID, professionalID, before)
}

func (r pgReader) ListHistory(ctx context.Context, appointmentID string) ([]model.RescheduleHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, appointment_id, professional_id, original_start, requested_start, reason, initiated_by, outcome, detail, created_at
		FROM reschedule_history
		WHERE appointment_id = $1
		ORDER BY created_at ASC, id ASC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.RescheduleHistory, error) {
		var h model.RescheduleHistory
		err := row.Scan(&h.ID, &h.AppointmentID, &h.ProfessionalID, &h.OriginalStart, &h.RequestedStart, &h.Reason,
			&h.InitiatedBy, &h.Outcome, &h.Detail, &h.CreatedAt)
		return h, err
	})
}

const jobColumns = `id, idempotency_key, appointment_id, professional_id, channel, recipient, offset_hours, fire_at,
	status, attempts, max_attempts, next_attempt_at, sent_at, last_error, traceparent, tracestate, created_at, updated_at`

func scanJob(row pgx.Row) (model.ReminderJob, error) {
	var j model.ReminderJob
	err := row.Scan(&j.ID, &j.IdempotencyKey, &j.AppointmentID, &j.ProfessionalID, &j.Channel, &j.Recipient, &j.OffsetHours,
		&j.FireAt, &j.Status, &j.Attempts, &j.MaxAttempts, &j.NextAttemptAt, &j.SentAt, &j.LastError,
		&j.Traceparent, &j.Tracestate, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func (r pgReader) ListJobs(ctx context.Context, appointmentID string) ([]model.ReminderJob, error) {
	rows, err := r.q.Query(ctx, `SELECT `+jobColumns+` FROM reminder_jobs WHERE appointment_id = $1 ORDER BY fire_at`, appointmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ReminderJob, error) { return scanJob(row) })
}

func (r pgReader) GetProfessional(ctx context.Context, id string) (model.Professional, error) {
	var p model.Professional
	err := r.q.QueryRow(ctx, `SELECT id, name, timezone FROM professionals WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Timezone)
	return p, notFound(err, "professional", id)
}

func (r pgReader) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := r.q.QueryRow(ctx, `SELECT id, name, phone, email, whatsapp FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.WhatsApp)
	return c, notFound(err, "client", id)
}

func (r pgReader) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.q.QueryRow(ctx, `SELECT id, professional_id, name, price_cents, duration_minutes FROM services WHERE id = $1`, id).
		Scan(&s.ID, &s.ProfessionalID, &s.Name, &s.PriceCents, &s.DurationMinutes)
	return s, notFound(err, "service", id)
}

func (r pgReader) ListWorkingHours(ctx context.Context, professionalID string) ([]model.WorkingHours, error) {
	rows, err := r.q.Query(ctx, `
		SELECT professional_id, weekday, is_open, open_minute, close_minute, break_start_minute, break_end_minute
		FROM working_hours
		WHERE professional_id = $1
		ORDER BY weekday
	`, professionalID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WorkingHours, error) {
		var wh model.WorkingHours
		var weekday int16
		err := row.Scan(&wh.ProfessionalID, &weekday, &wh.IsOpen, &wh.OpenMinute, &wh.CloseMinute, &wh.BreakStartMinute, &wh.BreakEndMinute)
		wh.Weekday = time.Weekday(weekday)
		return wh, err
	})
}

func (r pgReader) ListHolidays(ctx context.Context, professionalID string) ([]model.Holiday, error) {
	rows, err := r.q.Query(ctx, `
		SELECT professional_id, day::text, kind, description, is_open
		FROM holidays
		WHERE professional_id = $1
		ORDER BY day
	`, professionalID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Holiday, error) {
		var h model.Holiday
		err := row.Scan(&h.ProfessionalID, &h.Date, &h.Kind, &h.Description, &h.Open)
		return h, err
	})
}

func (r pgReader) GetReminderConfig(ctx context.Context, professionalID string) (model.ReminderConfig, error) {
	cfg := model.ReminderConfig{ProfessionalID: professionalID}
	var offsets []int32
	var channels []string
	err := r.q.QueryRow(ctx, `
		SELECT enabled, offsets_hours, channels, template
		FROM reminder_configs
		WHERE professional_id = $1
	`, professionalID).Scan(&cfg.Enabled, &offsets, &channels, &cfg.Template)
	if err != nil {
		return model.ReminderConfig{}, notFound(err, "reminder config", professionalID)
	}
	for _, o := range offsets {
		cfg.OffsetsHours = append(cfg.OffsetsHours, int(o))
	}
	for _, c := range channels {
		cfg.Channels = append(cfg.Channels, model.Channel(c))
	}
	return cfg, nil
}

func (r pgReader) GetReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error) {
	p := model.ReschedulePolicy{ProfessionalID: professionalID}
	var noticeSeconds int64
	var blackouts []byte
	err := r.q.QueryRow(ctx, `
		SELECT minimum_notice_seconds, max_reschedules, blackouts, allow_same_day, buffer_minutes, far_future_days
		FROM reschedule_policies
		WHERE professional_id = $1
	`, professionalID).Scan(&noticeSeconds, &p.MaxReschedules, &blackouts, &p.AllowSameDay, &p.BufferMinutes, &p.FarFutureDays)
	if err != nil {
		return model.ReschedulePolicy{}, notFound(err, "reschedule policy", professionalID)
	}
	p.MinimumNotice = time.Duration(noticeSeconds) * time.Second
	if len(blackouts) > 0 {
		if err := json.Unmarshal(blackouts, &p.Blackouts); err != nil {
			return model.ReschedulePolicy{}, fmt.Errorf("decode blackouts: %w", err)
		}
	}
	return p, nil
}

type pgTx struct {
	pgReader
	tx pgx.Tx
}

func (t *pgTx) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Version == 0 {
		appt.Version = 1
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, professional_id, client_id, staff_id, service_id, service_name, price_cents, duration_minutes,
			 start_time, end_time, status, payment_status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, appt.ID, appt.ProfessionalID, appt.ClientID, appt.StaffID, appt.ServiceID, appt.ServiceName, appt.PriceCents,
		appt.DurationMinutes, appt.StartTime, appt.EndTime(), string(appt.Status), appt.PaymentStatus, appt.Version,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	return translate(err)
}

func (t *pgTx) UpdateAppointment(ctx context.Context, appt model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET staff_id = $2,
			duration_minutes = $3,
			start_time = $4,
			end_time = $5,
			status = $6,
			payment_status = $7,
			cancelled_at = $8,
			cancel_reason = $9,
			updated_at = $10,
			version = $11
		WHERE id = $1 AND professional_id = $12
	`, appt.ID, appt.StaffID, appt.DurationMinutes, appt.StartTime, appt.EndTime(), string(appt.Status), appt.PaymentStatus,
		appt.CancelledAt, appt.CancelReason, appt.UpdatedAt, appt.Version, appt.ProfessionalID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s: %w", appt.ID, ErrNotFound)
	}
	return nil
}

func (t *pgTx) AppendHistory(ctx context.Context, h *model.RescheduleHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO reschedule_history
			(id, appointment_id, professional_id, original_start, requested_start, reason, initiated_by, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, h.ID, h.AppointmentID, h.ProfessionalID, h.OriginalStart, h.RequestedStart, h.Reason, string(h.InitiatedBy),
		string(h.Outcome), h.Detail).Scan(&h.CreatedAt)
}

func (t *pgTx) InsertReminderJob(ctx context.Context, job *model.ReminderJob) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = job.FireAt
	}
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO reminder_jobs
			(id, idempotency_key, appointment_id, professional_id, channel, recipient, offset_hours, fire_at,
			 status, max_attempts, next_attempt_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (idempotency_key) WHERE status <> 'CANCELED' DO NOTHING
	`, job.ID, job.IdempotencyKey, job.AppointmentID, job.ProfessionalID, string(job.Channel), job.Recipient,
		job.OffsetHours, job.FireAt, string(job.Status), job.MaxAttempts, job.NextAttemptAt, job.Traceparent, job.Tracestate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) CancelPendingJobs(ctx context.Context, appointmentID string, at time.Time) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'CANCELED', updated_at = $2
		WHERE appointment_id = $1 AND status = 'PENDING'
	`, appointmentID, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) InsertOutbox(ctx context.Context, evt outbox.Event) error {
	if evt.Trace == (otelx.TraceContext{}) {
		evt.Trace = otelx.CaptureTraceContext(ctx)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, evt.Trace.Traceparent, evt.Trace.Tracestate)
	return err
}

func (t *pgTx) LockIdempotencyKey(ctx context.Context, professionalID, key string) (IdempotencyRecord, bool, error) {
	rec, err := t.selectIdempotencyForUpdate(ctx, professionalID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (professional_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (professional_id, idempotency_key) DO NOTHING
	`, professionalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = t.selectIdempotencyForUpdate(ctx, professionalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, rec.Done(), nil
}

func (t *pgTx) FinalizeIdempotency(ctx context.Context, rec IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = NULLIF($3, ''),
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE professional_id = $1 AND idempotency_key = $2
	`, rec.ProfessionalID, rec.Key, rec.AppointmentID, rec.StatusCode, rec.ResponsePayload)
	return err
}

func (t *pgTx) selectIdempotencyForUpdate(ctx context.Context, professionalID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := t.tx.QueryRow(ctx, `
		SELECT professional_id,
			idempotency_key,
			COALESCE(appointment_id, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE professional_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, professionalID, key).Scan(&rec.ProfessionalID, &rec.Key, &rec.AppointmentID, &rec.StatusCode, &responseText)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func (t *pgTx) UpsertProfessional(ctx context.Context, p model.Professional) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO professionals (id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, timezone = EXCLUDED.timezone, updated_at = now()
	`, p.ID, p.Name, p.Timezone)
	return err
}

func (t *pgTx) UpsertClient(ctx context.Context, c model.Client) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO clients (id, name, phone, email, whatsapp)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email,
			whatsapp = EXCLUDED.whatsapp, updated_at = now()
	`, c.ID, c.Name, c.Phone, c.Email, c.WhatsApp)
	return err
}

func (t *pgTx) UpsertService(ctx context.Context, s model.Service) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO services (id, professional_id, name, price_cents, duration_minutes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET professional_id = EXCLUDED.professional_id, name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents, duration_minutes = EXCLUDED.duration_minutes, updated_at = now()
	`, s.ID, s.ProfessionalID, s.Name, s.PriceCents, s.DurationMinutes)
	return err
}

func (t *pgTx) ReplaceWorkingHours(ctx context.Context, professionalID string, hours []model.WorkingHours) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM working_hours WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, wh := range hours {
		batch.Queue(`
			INSERT INTO working_hours
				(professional_id, weekday, is_open, open_minute, close_minute, break_start_minute, break_end_minute)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, professionalID, int16(wh.Weekday), wh.IsOpen, wh.OpenMinute, wh.CloseMinute, wh.BreakStartMinute, wh.BreakEndMinute)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) ReplaceHolidays(ctx context.Context, professionalID string, holidays []model.Holiday) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM holidays WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, h := range holidays {
		batch.Queue(`
			INSERT INTO holidays (professional_id, day, kind, description, is_open)
			VALUES ($1, $2::date, $3, $4, $5)
		`, professionalID, h.Date, string(h.Kind), h.Description, h.Open)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) PutReminderConfig(ctx context.Context, cfg model.ReminderConfig) error {
	offsets := make([]int32, 0, len(cfg.OffsetsHours))
	for _, o := range cfg.OffsetsHours {
		offsets = append(offsets, int32(o))
	}
	channels := make([]string, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		channels = append(channels, string(c))
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reminder_configs (professional_id, enabled, offsets_hours, channels, template)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (professional_id) DO UPDATE SET enabled = EXCLUDED.enabled, offsets_hours = EXCLUDED.offsets_hours,
			channels = EXCLUDED.channels, template = EXCLUDED.template, updated_at = now()
	`, cfg.ProfessionalID, cfg.Enabled, offsets, channels, cfg.Template)
	return err
}

func (t *pgTx) PutReschedulePolicy(ctx context.Context, p model.ReschedulePolicy) error {
	blackouts, err := json.Marshal(p.Blackouts)
	if err != nil {
		return err
	}
	if p.Blackouts == nil {
		blackouts = []byte("[]")
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO reschedule_policies
			(professional_id, minimum_notice_seconds, max_reschedules, blackouts, allow_same_day, buffer_minutes, far_future_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (professional_id) DO UPDATE SET minimum_notice_seconds = EXCLUDED.minimum_notice_seconds,
			max_reschedules = EXCLUDED.max_reschedules, blackouts = EXCLUDED.blackouts,
			allow_same_day = EXCLUDED.allow_same_day, buffer_minutes = EXCLUDED.buffer_minutes,
			far_future_days = EXCLUDED.far_future_days, updated_at = now()
	`, p.ProfessionalID, int64(p.MinimumNotice/time.Second), p.MaxReschedules, blackouts, p.AllowSameDay, p.BufferMinutes, p.FarFutureDays)
	return err
}

var (
	_ Store = (*Postgres)(nil)
	_ Tx    = (*pgTx)(nil)
)
