package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Memory is a Store kept in process memory. A single write lock serializes every
// transaction, which also satisfies the per-professional lock. Failed transactions
// are rolled back through an undo log.
type Memory struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	appointments map[string]model.Appointment
	apptsByPro   map[string][]string
	history      map[string][]model.RescheduleHistory
	jobs         map[string]model.ReminderJob
	jobKeys      map[string]string
	jobsByAppt   map[string][]string
	outbox       []*outboxRow
	outboxSeq    int64
	inbox        map[string]string
	idempotency  map[string]IdempotencyRecord

	professionals map[string]model.Professional
	clients       map[string]model.Client
	services      map[string]model.Service
	hours         map[string][]model.WorkingHours
	holidays      map[string][]model.Holiday
	reminderCfgs  map[string]model.ReminderConfig
	policies      map[string]model.ReschedulePolicy
}

type outboxRow struct {
	record    outbox.Record
	inflight  bool
	published bool
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now: now,
		state: &memState{
			appointments:  map[string]model.Appointment{},
			apptsByPro:    map[string][]string{},
			history:       map[string][]model.RescheduleHistory{},
			jobs:          map[string]model.ReminderJob{},
			jobKeys:       map[string]string{},
			jobsByAppt:    map[string][]string{},
			inbox:         map[string]string{},
			idempotency:   map[string]IdempotencyRecord{},
			professionals: map[string]model.Professional{},
			clients:       map[string]model.Client{},
			services:      map[string]model.Service{},
			hours:         map[string][]model.WorkingHours{},
			holidays:      map[string][]model.Holiday{},
			reminderCfgs:  map[string]model.ReminderConfig{},
			policies:      map[string]model.ReschedulePolicy{},
		},
	}
}

func (m *Memory) WithProfessional(ctx context.Context, professionalID string, fn func(Tx) error) error {
	return m.InTx(ctx, fn)
}

func (m *Memory) InTx(ctx context.Context, fn func(Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{memState: m.state, now: m.now}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (m *Memory) DueJobs(_ context.Context, now time.Time, limit int) ([]model.ReminderJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []model.ReminderJob
	for _, j := range m.state.jobs {
		if j.Status == model.JobPending && !j.NextAttemptAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if due[i].NextAttemptAt.Equal(due[k].NextAttemptAt) {
			return due[i].ID < due[k].ID
		}
		return due[i].NextAttemptAt.Before(due[k].NextAttemptAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) ClaimJob(_ context.Context, id string, seenAttempts int, leaseUntil time.Time) (model.ReminderJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.state.jobs[id]
	if !ok {
		return model.ReminderJob{}, false, ErrNotFound
	}
	if job.Status != model.JobPending || job.Attempts != seenAttempts {
		return model.ReminderJob{}, false, nil
	}
	job.Attempts++
	job.NextAttemptAt = leaseUntil
	job.UpdatedAt = m.now().UTC()
	m.state.jobs[id] = job
	return job, true, nil
}

func (m *Memory) FinalizeJob(ctx context.Context, id string, claimedAttempts int, upd JobUpdate, events ...outbox.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.state.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != model.JobPending || job.Attempts != claimedAttempts {
		return false, nil
	}
	if upd.Status != model.JobPending && !job.Status.CanTransitionTo(upd.Status) {
		return false, fmt.Errorf("%w: job %s -> %s", model.ErrInvalidTransition, job.Status, upd.Status)
	}
	job.Status = upd.Status
	job.SentAt = upd.SentAt
	job.LastError = upd.LastError
	if !upd.NextAttemptAt.IsZero() {
		job.NextAttemptAt = upd.NextAttemptAt
	}
	job.UpdatedAt = upd.UpdatedAt
	m.state.jobs[id] = job

	tx := &memTx{memState: m.state, now: m.now}
	for _, evt := range events {
		if err := tx.InsertOutbox(ctx, evt); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (m *Memory) PublishOutbox(ctx context.Context, limit int, fn func([]outbox.Record) error) (int, error) {
	m.mu.Lock()
	var rows []*outboxRow
	for _, r := range m.state.outbox {
		if r.published || r.inflight {
			continue
		}
		r.inflight = true
		rows = append(rows, r)
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	m.mu.Unlock()
	if len(rows) == 0 {
		return 0, nil
	}

	records := make([]outbox.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record)
	}
	err := fn(records)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		r.inflight = false
		r.published = err == nil
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// PendingOutbox returns unpublished events in insertion order.
func (m *Memory) PendingOutbox() []outbox.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []outbox.Record
	for _, r := range m.state.outbox {
		if !r.published {
			out = append(out, r.record)
		}
	}
	return out
}

func (m *Memory) RecordInbox(_ context.Context, eventID, eventType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.inbox[eventID]; ok {
		return false, nil
	}
	m.state.inbox[eventID] = eventType
	return true, nil
}

func (m *Memory) Ready(context.Context) error {
	return nil
}

func readLocked[T any](m *Memory, fn func(*memState) (T, error)) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.state)
}

func (m *Memory) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return readLocked(m, func(s *memState) (model.Appointment, error) { return s.GetAppointment(ctx, id) })
}

func (m *Memory) ListAppointments(ctx context.Context, professionalID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	return readLocked(m, func(s *memState) ([]model.Appointment, error) {
		return s.ListAppointments(ctx, professionalID, from, to, limit)
	})
}

func (m *Memory) ListBlocking(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	return readLocked(m, func(s *memState) ([]model.Appointment, error) { return s.ListBlocking(ctx, professionalID, from, to) })
}

func (m *Memory) PastAppointments(ctx context.Context, clientID, professionalID string, before time.Time) ([]model.Appointment, error) {
	return readLocked(m, func(s *memState) ([]model.Appointment, error) {
		return s.PastAppointments(ctx, clientID, professionalID, before)
	})
}

func (m *Memory) ListHistory(ctx context.Context, appointmentID string) ([]model.RescheduleHistory, error) {
	return readLocked(m, func(s *memState) ([]model.RescheduleHistory, error) { return s.ListHistory(ctx, appointmentID) })
}

func (m *Memory) ListJobs(ctx context.Context, appointmentID string) ([]model.ReminderJob, error) {
	return readLocked(m, func(s *memState) ([]model.ReminderJob, error) { return s.ListJobs(ctx, appointmentID) })
}

func (m *Memory) GetProfessional(ctx context.Context, id string) (model.Professional, error) {
	return readLocked(m, func(s *memState) (model.Professional, error) { return s.GetProfessional(ctx, id) })
}

func (m *Memory) GetClient(ctx context.Context, id string) (model.Client, error) {
	return readLocked(m, func(s *memState) (model.Client, error) { return s.GetClient(ctx, id) })
}

func (m *Memory) GetService(ctx context.Context, id string) (model.Service, error) {
	return readLocked(m, func(s *memState) (model.Service, error) { return s.GetService(ctx, id) })
}

func (m *Memory) ListWorkingHours(ctx context.Context, professionalID string) ([]model.WorkingHours, error) {
	return readLocked(m, func(s *memState) ([]model.WorkingHours, error) { return s.ListWorkingHours(ctx, professionalID) })
}

func (m *Memory) ListHolidays(ctx context.Context, professionalID string) ([]model.Holiday, error) {
	return readLocked(m, func(s *memState) ([]model.Holiday, error) { return s.ListHolidays(ctx, professionalID) })
}

func (m *Memory) GetReminderConfig(ctx context.Context, professionalID string) (model.ReminderConfig, error) {
	return readLocked(m, func(s *memState) (model.ReminderConfig, error) { return s.GetReminderConfig(ctx, professionalID) })
}

func (m *Memory) GetReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error) {
	return readLocked(m, func(s *memState) (model.ReschedulePolicy, error) { return s.GetReschedulePolicy(ctx, professionalID) })
}

// Reads below assume the caller holds the store lock.

func (s *memState) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *memState) ListAppointments(_ context.Context, professionalID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, id := range s.apptsByPro[professionalID] {
		a := s.appointments[id]
		if !from.IsZero() && a.StartTime.Before(from) {
			continue
		}
		if !to.IsZero() && !a.StartTime.Before(to) {
			continue
		}
		out = append(out, a)
	}
	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memState) ListBlocking(_ context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, id := range s.apptsByPro[professionalID] {
		a := s.appointments[id]
		if a.Status.Blocking() && a.StartTime.Before(to) && a.EndTime().After(from) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *memState) PastAppointments(_ context.Context, clientID, professionalID string, before time.Time) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, id := range s.apptsByPro[professionalID] {
		a := s.appointments[id]
		if a.ClientID == clientID && a.StartTime.Before(before) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *memState) ListHistory(_ context.Context, appointmentID string) ([]model.RescheduleHistory, error) {
	return append([]model.RescheduleHistory(nil), s.history[appointmentID]...), nil
}

func (s *memState) ListJobs(_ context.Context, appointmentID string) ([]model.ReminderJob, error) {
	out := make([]model.ReminderJob, 0, len(s.jobsByAppt[appointmentID]))
	for _, id := range s.jobsByAppt[appointmentID] {
		out = append(out, s.jobs[id])
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].FireAt.Before(out[k].FireAt) })
	return out, nil
}

func (s *memState) GetProfessional(_ context.Context, id string) (model.Professional, error) {
	return lookup(s.professionals, id, "professional")
}

func (s *memState) GetClient(_ context.Context, id string) (model.Client, error) {
	return lookup(s.clients, id, "client")
}

func (s *memState) GetService(_ context.Context, id string) (model.Service, error) {
	return lookup(s.services, id, "service")
}

func (s *memState) ListWorkingHours(_ context.Context, professionalID string) ([]model.WorkingHours, error) {
	return append([]model.WorkingHours(nil), s.hours[professionalID]...), nil
}

func (s *memState) ListHolidays(_ context.Context, professionalID string) ([]model.Holiday, error) {
	return append([]model.Holiday(nil), s.holidays[professionalID]...), nil
}

func (s *memState) GetReminderConfig(_ context.Context, professionalID string) (model.ReminderConfig, error) {
	cfg, err := lookup(s.reminderCfgs, professionalID, "reminder config")
	if err != nil {
		return cfg, err
	}
	cfg.OffsetsHours = append([]int(nil), cfg.OffsetsHours...)
	cfg.Channels = append([]model.Channel(nil), cfg.Channels...)
	return cfg, nil
}

func (s *memState) GetReschedulePolicy(_ context.Context, professionalID string) (model.ReschedulePolicy, error) {
	p, err := lookup(s.policies, professionalID, "reschedule policy")
	if err != nil {
		return p, err
	}
	p.Blackouts = append([]model.BlackoutRange(nil), p.Blackouts...)
	return p, nil
}

func lookup[V any](m map[string]V, id, entity string) (V, error) {
	v, ok := m[id]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return v, nil
}

func sortByStart(appts []model.Appointment) {
	sort.SliceStable(appts, func(i, k int) bool { return appts[i].StartTime.Before(appts[k].StartTime) })
}

type memTx struct {
	*memState
	now  func() time.Time
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func set[K comparable, V any](tx *memTx, m map[K]V, k K, v V) {
	prev, ok := m[k]
	tx.undo = append(tx.undo, func() {
		if ok {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// overlapsBlocking mirrors the Postgres exclusion constraint.
func (tx *memTx) overlapsBlocking(appt model.Appointment) bool {
	if !appt.Status.Blocking() {
		return false
	}
	for _, id := range tx.apptsByPro[appt.ProfessionalID] {
		other := tx.appointments[id]
		if other.ID == appt.ID || !other.Status.Blocking() {
			continue
		}
		if appt.StartTime.Before(other.EndTime()) && other.StartTime.Before(appt.EndTime()) {
			return true
		}
	}
	return false
}

func (tx *memTx) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	now := tx.now().UTC()
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if _, exists := tx.appointments[appt.ID]; exists {
		return fmt.Errorf("appointment %s already exists", appt.ID)
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = appt.CreatedAt
	if appt.Version == 0 {
		appt.Version = 1
	}
	if tx.overlapsBlocking(*appt) {
		return ErrConflict
	}
	set(tx, tx.appointments, appt.ID, *appt)
	set(tx, tx.apptsByPro, appt.ProfessionalID, append(tx.apptsByPro[appt.ProfessionalID], appt.ID))
	return nil
}

func (tx *memTx) UpdateAppointment(_ context.Context, appt model.Appointment) error {
	prev, ok := tx.appointments[appt.ID]
	if !ok {
		return fmt.Errorf("appointment %s: %w", appt.ID, ErrNotFound)
	}
	if prev.ProfessionalID != appt.ProfessionalID {
		return fmt.Errorf("appointment %s cannot change professional", appt.ID)
	}
	if tx.overlapsBlocking(appt) {
		return ErrConflict
	}
	set(tx, tx.appointments, appt.ID, appt)
	return nil
}

func (tx *memTx) AppendHistory(_ context.Context, h *model.RescheduleHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = tx.now().UTC()
	}
	set(tx, tx.history, h.AppointmentID, append(tx.history[h.AppointmentID], *h))
	return nil
}

func (tx *memTx) InsertReminderJob(_ context.Context, job *model.ReminderJob) (bool, error) {
	if id, exists := tx.jobKeys[job.IdempotencyKey]; exists && tx.jobs[id].Status != model.JobCanceled {
		return false, nil
	}
	now := tx.now().UTC()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = job.FireAt
	}
	job.CreatedAt, job.UpdatedAt = now, now
	set(tx, tx.jobs, job.ID, *job)
	set(tx, tx.jobKeys, job.IdempotencyKey, job.ID)
	set(tx, tx.jobsByAppt, job.AppointmentID, append(tx.jobsByAppt[job.AppointmentID], job.ID))
	return true, nil
}

func (tx *memTx) CancelPendingJobs(_ context.Context, appointmentID string, at time.Time) (int, error) {
	n := 0
	for _, id := range tx.jobsByAppt[appointmentID] {
		job := tx.jobs[id]
		if job.Status != model.JobPending {
			continue
		}
		job.Status = model.JobCanceled
		job.UpdatedAt = at
		set(tx, tx.jobs, id, job)
		n++
	}
	return n, nil
}

func (tx *memTx) InsertOutbox(ctx context.Context, evt outbox.Event) error {
	if evt.Trace == (otelx.TraceContext{}) {
		evt.Trace = otelx.CaptureTraceContext(ctx)
	}
	prevRows, prevSeq := tx.outbox, tx.outboxSeq
	tx.undo = append(tx.undo, func() {
		tx.memState.outbox = prevRows
		tx.outboxSeq = prevSeq
	})
	tx.outboxSeq++
	tx.memState.outbox = append(tx.memState.outbox, &outboxRow{record: outbox.Record{
		Seq:       tx.outboxSeq,
		EventID:   uuid.NewString(),
		Event:     evt,
		CreatedAt: tx.now().UTC(),
	}})
	return nil
}

func (tx *memTx) LockIdempotencyKey(_ context.Context, professionalID, key string) (IdempotencyRecord, bool, error) {
	k := professionalID + "|" + key
	if rec, ok := tx.idempotency[k]; ok {
		return rec, true, nil
	}
	rec := IdempotencyRecord{ProfessionalID: professionalID, Key: key}
	set(tx, tx.idempotency, k, rec)
	return rec, false, nil
}

func (tx *memTx) FinalizeIdempotency(_ context.Context, rec IdempotencyRecord) error {
	k := rec.ProfessionalID + "|" + rec.Key
	if _, ok := tx.idempotency[k]; !ok {
		return fmt.Errorf("idempotency key %s: %w", rec.Key, ErrNotFound)
	}
	set(tx, tx.idempotency, k, rec)
	return nil
}

func (tx *memTx) UpsertProfessional(_ context.Context, p model.Professional) error {
	set(tx, tx.professionals, p.ID, p)
	return nil
}

func (tx *memTx) UpsertClient(_ context.Context, c model.Client) error {
	set(tx, tx.clients, c.ID, c)
	return nil
}

func (tx *memTx) UpsertService(_ context.Context, svc model.Service) error {
	set(tx, tx.services, svc.ID, svc)
	return nil
}

func (tx *memTx) ReplaceWorkingHours(_ context.Context, professionalID string, hours []model.WorkingHours) error {
	set(tx, tx.hours, professionalID, append([]model.WorkingHours(nil), hours...))
	return nil
}

func (tx *memTx) ReplaceHolidays(_ context.Context, professionalID string, holidays []model.Holiday) error {
	set(tx, tx.holidays, professionalID, append([]model.Holiday(nil), holidays...))
	return nil
}

func (tx *memTx) PutReminderConfig(_ context.Context, cfg model.ReminderConfig) error {
	set(tx, tx.reminderCfgs, cfg.ProfessionalID, cfg)
	return nil
}

func (tx *memTx) PutReschedulePolicy(_ context.Context, p model.ReschedulePolicy) error {
	set(tx, tx.policies, p.ProfessionalID, p)
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Tx    = (*memTx)(nil)
)
