package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would overlap another blocking appointment.
	ErrConflict = errors.New("appointment overlaps an existing booking")
)

type IdempotencyRecord struct {
	ProfessionalID  string
	Key             string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// Done reports whether the original request finished and its response can be replayed.
func (r IdempotencyRecord) Done() bool {
	return r.StatusCode > 0
}

// JobUpdate finalizes a claimed reminder job.
type JobUpdate struct {
	Status        model.JobStatus
	SentAt        *time.Time
	LastError     string
	NextAttemptAt time.Time
	UpdatedAt     time.Time
}

// Reader is the read side shared by transactions and the non-locking query paths
// (conflict detection, slot search, listings).
type Reader interface {
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, professionalID string, from, to time.Time, limit int) ([]model.Appointment, error)
	ListBlocking(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error)
	PastAppointments(ctx context.Context, clientID, professionalID string, before time.Time) ([]model.Appointment, error)
	ListHistory(ctx context.Context, appointmentID string) ([]model.RescheduleHistory, error)
	ListJobs(ctx context.Context, appointmentID string) ([]model.ReminderJob, error)

	GetProfessional(ctx context.Context, id string) (model.Professional, error)
	GetClient(ctx context.Context, id string) (model.Client, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListWorkingHours(ctx context.Context, professionalID string) ([]model.WorkingHours, error)
	ListHolidays(ctx context.Context, professionalID string) ([]model.Holiday, error)
	GetReminderConfig(ctx context.Context, professionalID string) (model.ReminderConfig, error)
	GetReschedulePolicy(ctx context.Context, professionalID string) (model.ReschedulePolicy, error)
}

// Tx is a unit of work. Writes become visible to other callers only when the
// surrounding WithProfessional or InTx returns nil.
type Tx interface {
	Reader

	InsertAppointment(ctx context.Context, appt *model.Appointment) error
	UpdateAppointment(ctx context.Context, appt model.Appointment) error
	AppendHistory(ctx context.Context, h *model.RescheduleHistory) error

	// InsertReminderJob returns false when a job that is not CANCELED already holds the idempotency key.
	InsertReminderJob(ctx context.Context, job *model.ReminderJob) (bool, error)
	CancelPendingJobs(ctx context.Context, appointmentID string, at time.Time) (int, error)

	InsertOutbox(ctx context.Context, evt outbox.Event) error

	// LockIdempotencyKey reserves key for the professional. exists is true when a
	// previous request already holds it.
	LockIdempotencyKey(ctx context.Context, professionalID, key string) (rec IdempotencyRecord, exists bool, err error)
	FinalizeIdempotency(ctx context.Context, rec IdempotencyRecord) error

	UpsertProfessional(ctx context.Context, p model.Professional) error
	UpsertClient(ctx context.Context, c model.Client) error
	UpsertService(ctx context.Context, s model.Service) error
	ReplaceWorkingHours(ctx context.Context, professionalID string, hours []model.WorkingHours) error
	ReplaceHolidays(ctx context.Context, professionalID string, holidays []model.Holiday) error
	PutReminderConfig(ctx context.Context, cfg model.ReminderConfig) error
	PutReschedulePolicy(ctx context.Context, p model.ReschedulePolicy) error
}

type Store interface {
	Reader

	// WithProfessional runs fn in a transaction that holds the professional's exclusive lock,
	// so a conflict check and the write that follows it are atomic.
	WithProfessional(ctx context.Context, professionalID string, fn func(Tx) error) error
	InTx(ctx context.Context, fn func(Tx) error) error

	DueJobs(ctx context.Context, now time.Time, limit int) ([]model.ReminderJob, error)
	// ClaimJob bumps attempts and leases the job when it is still PENDING with seenAttempts.
	// Exactly one concurrent caller wins.
	ClaimJob(ctx context.Context, id string, seenAttempts int, leaseUntil time.Time) (model.ReminderJob, bool, error)
	// FinalizeJob applies upd only while the job is PENDING at claimedAttempts and writes
	// events in the same transaction. It returns false when the guard no longer holds.
	FinalizeJob(ctx context.Context, id string, claimedAttempts int, upd JobUpdate, events ...outbox.Event) (bool, error)

	outbox.Source
	// RecordInbox returns false when eventID was already consumed.
	RecordInbox(ctx context.Context, eventID, eventType string) (bool, error)

	Ready(ctx context.Context) error
}
