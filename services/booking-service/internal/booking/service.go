package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxSuggestions = 5
	DefaultNotifyTimeout  = 5 * time.Second
)

type Options struct {
	// DefaultPolicy applies to professionals without a stored reschedule policy.
	DefaultPolicy  *model.ReschedulePolicy
	Reminders      *reminders.Scheduler
	Sender         notify.Sender
	Now            func() time.Time
	MaxSuggestions int
	NotifyTimeout  time.Duration
}

// Service is the booking API: it books, moves, confirms and cancels appointments
// while keeping reminder jobs, history and outbox events in the same transaction.
type Service struct {
	store          storage.Store
	logger         *slog.Logger
	defaultPolicy  model.ReschedulePolicy
	policies       policy.Provider
	searcher       *availability.Searcher
	reminders      *reminders.Scheduler
	sender         notify.Sender
	now            func() time.Time
	maxSuggestions int
	notifyTimeout  time.Duration
	tracer         trace.Tracer
}

func NewService(store storage.Store, logger *slog.Logger, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	def := model.DefaultReschedulePolicy()
	if opts.DefaultPolicy != nil {
		def = *opts.DefaultPolicy
	}
	sched := opts.Reminders
	if sched == nil {
		sched = reminders.NewScheduler(0, now)
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = DefaultNotifyTimeout
	}

	policies := policy.NewStoreProvider(store, def)
	return &Service{
		store:          store,
		logger:         logger,
		defaultPolicy:  def,
		policies:       policies,
		searcher:       availability.NewSearcher(store, StoreCalendars{Reader: store}, policy.BufferSource{Provider: policies}, now),
		reminders:      sched,
		sender:         opts.Sender,
		now:            now,
		maxSuggestions: opts.MaxSuggestions,
		notifyTimeout:  opts.NotifyTimeout,
		tracer:         otel.Tracer("booking"),
	}
}

type CreateRequest struct {
	ProfessionalID  string
	ClientID        string
	ServiceID       string
	StaffID         string
	StartTime       time.Time
	DurationMinutes int // 0 uses the service duration
	IdempotencyKey  string
}

// CreateAppointment books a slot. Requests that carry an IdempotencyKey already
// used by the professional return the appointment created the first time.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (model.Appointment, error) {
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if verr := validateCreate(req); verr != nil {
		return model.Appointment{}, verr
	}

	var appt model.Appointment
	var duration time.Duration
	var conflict *ConflictError
	err := s.store.WithProfessional(ctx, req.ProfessionalID, func(tx storage.Tx) error {
		if req.IdempotencyKey != "" {
			rec, exists, err := tx.LockIdempotencyKey(ctx, req.ProfessionalID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if exists && rec.Done() && rec.AppointmentID != "" {
				appt, err = tx.GetAppointment(ctx, rec.AppointmentID)
				return err
			}
		}

		if _, err := tx.GetProfessional(ctx, req.ProfessionalID); err != nil {
			return notFound(err, "professional", req.ProfessionalID)
		}
		if _, err := tx.GetClient(ctx, req.ClientID); err != nil {
			return notFound(err, "client", req.ClientID)
		}
		svc, err := tx.GetService(ctx, req.ServiceID)
		if err != nil {
			return notFound(err, "service", req.ServiceID)
		}
		if svc.ProfessionalID != req.ProfessionalID {
			return invalid("service_id", "SERVICE_MISMATCH", "service %s is not offered by professional %s", svc.ID, req.ProfessionalID)
		}

		minutes := req.DurationMinutes
		if minutes == 0 {
			minutes = svc.DurationMinutes
		}
		if minutes <= 0 {
			return invalid("duration_minutes", "INVALID_DURATION", "duration must be positive")
		}
		duration = time.Duration(minutes) * time.Minute
		start := req.StartTime.UTC()

		if verr := s.checkSlot(ctx, tx, req.ProfessionalID, start, duration); verr != nil {
			return verr
		}
		overlapping, err := s.detector(tx).Conflicts(ctx, req.ProfessionalID, start, duration, "")
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			conflict = conflictFrom(overlapping)
			return conflict
		}

		appt = model.Appointment{
			ID:              uuid.NewString(),
			ProfessionalID:  req.ProfessionalID,
			ClientID:        req.ClientID,
			StaffID:         req.StaffID,
			ServiceID:       svc.ID,
			ServiceName:     svc.Name,
			PriceCents:      svc.PriceCents,
			DurationMinutes: minutes,
			StartTime:       start,
			Status:          model.StatusScheduled,
			Version:         1,
		}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				conflict = &ConflictError{}
				return conflict
			}
			return err
		}
		if _, err := s.reminders.Plan(ctx, tx, appt); err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, outbox.NewEvent("appointment", appt.ID, outbox.AppointmentBooked, appointmentPayload(appt, nil))); err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			return tx.FinalizeIdempotency(ctx, storage.IdempotencyRecord{
				ProfessionalID: req.ProfessionalID,
				Key:            req.IdempotencyKey,
				AppointmentID:  appt.ID,
				StatusCode:     201,
			})
		}
		return nil
	})
	if conflict != nil {
		conflict.Suggestions = s.suggest(ctx, req.ProfessionalID, duration, req.StartTime, "", nil)
		return model.Appointment{}, conflict
	}
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "professional_id", appt.ProfessionalID, "start", appt.StartTime)
	return appt, nil
}

func validateCreate(req CreateRequest) *ValidationError {
	var reasons []Reason
	if req.ProfessionalID == "" {
		reasons = append(reasons, Reason{Field: "professional_id", Code: "REQUIRED", Message: "professional_id is required"})
	}
	if req.ClientID == "" {
		reasons = append(reasons, Reason{Field: "client_id", Code: "REQUIRED", Message: "client_id is required"})
	}
	if req.ServiceID == "" {
		reasons = append(reasons, Reason{Field: "service_id", Code: "REQUIRED", Message: "service_id is required"})
	}
	if req.StartTime.IsZero() {
		reasons = append(reasons, Reason{Field: "start_time", Code: "REQUIRED", Message: "start_time is required"})
	}
	if req.DurationMinutes < 0 {
		reasons = append(reasons, Reason{Field: "duration_minutes", Code: "INVALID_DURATION", Message: "duration must be positive"})
	}
	if len(reasons) == 0 {
		return nil
	}
	return &ValidationError{Reasons: reasons}
}

// checkSlot validates a slot against the calendar and the clock.
func (s *Service) checkSlot(ctx context.Context, tx storage.Tx, professionalID string, start time.Time, duration time.Duration) error {
	cal, err := loadCalendar(ctx, tx, professionalID)
	if err != nil {
		return err
	}
	if ok, reason := cal.Fits(start, duration); !ok {
		return invalid("start_time", strings.ToUpper(reason), "requested slot is unavailable: %s", reason)
	}
	if !start.After(s.now()) {
		return invalid("start_time", "PAST_TIME", "requested slot is in the past")
	}
	return nil
}

// detector runs conflict checks on the transaction's own view of the schedule.
func (s *Service) detector(tx storage.Tx) *availability.Detector {
	return availability.NewDetector(tx, policy.BufferSource{Provider: policy.NewStoreProvider(tx, s.defaultPolicy)})
}

func (s *Service) policyFor(ctx context.Context, r storage.Reader, professionalID string) (model.ReschedulePolicy, error) {
	return policy.NewStoreProvider(r, s.defaultPolicy).ReschedulePolicy(ctx, professionalID)
}

// suggest returns the nearest available slots that allow accepts (nil accepts all). It runs
// outside any transaction and only logs failures, since suggestions decorate an error that
// is already decided.
func (s *Service) suggest(ctx context.Context, professionalID string, duration time.Duration, around time.Time, excludeID string, allow slotFilter) []availability.Option {
	if duration <= 0 {
		return nil
	}
	options, err := s.searcher.FindOptions(ctx, professionalID, duration, around, availability.Preferences{ExcludeAppointmentID: excludeID})
	if err != nil {
		s.logger.Warn("slot suggestions failed", "err", err, "professional_id", professionalID)
		return nil
	}
	return availability.Available(allow.apply(options), s.maxSuggestions)
}

// Cancel is idempotent: cancelling a cancelled appointment returns it unchanged.
func (s *Service) Cancel(ctx context.Context, appointmentID, reason string) (model.Appointment, error) {
	current, err := s.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}

	var appt model.Appointment
	changed := false
	err = s.store.WithProfessional(ctx, current.ProfessionalID, func(tx storage.Tx) error {
		appt, err = tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return notFound(err, "appointment", appointmentID)
		}
		if appt.Status == model.StatusCancelled {
			return nil
		}
		now := s.now().UTC()
		if err := appt.Transition(model.StatusCancelled, now); err != nil {
			return invalid("status", policy.CodeInvalidStatus, "appointment in status %s cannot be cancelled", appt.Status)
		}
		appt.CancelReason = strings.TrimSpace(reason)
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		if _, err := s.reminders.Cancel(ctx, tx, appt.ID); err != nil {
			return err
		}
		changed = true
		return tx.InsertOutbox(ctx, outbox.NewEvent("appointment", appt.ID, outbox.AppointmentCancelled, appointmentPayload(appt, map[string]any{
			"reason": appt.CancelReason,
		})))
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if changed {
		s.logger.Info("appointment cancelled", "appointment_id", appt.ID)
		s.notifyClient(ctx, appt, cancelledTemplate)
	}
	return appt, nil
}

// Confirm moves a SCHEDULED appointment to CONFIRMED. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, appointmentID string) (model.Appointment, error) {
	current, err := s.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}

	var appt model.Appointment
	err = s.store.WithProfessional(ctx, current.ProfessionalID, func(tx storage.Tx) error {
		appt, err = tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return notFound(err, "appointment", appointmentID)
		}
		if appt.Status == model.StatusConfirmed {
			return nil
		}
		if err := appt.Transition(model.StatusConfirmed, s.now().UTC()); err != nil {
			return invalid("status", policy.CodeInvalidStatus, "appointment in status %s cannot be confirmed", appt.Status)
		}
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return err
		}
		return tx.InsertOutbox(ctx, outbox.NewEvent("appointment", appt.ID, outbox.AppointmentConfirmed, appointmentPayload(appt, nil)))
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, notFound(err, "appointment", appointmentID)
	}
	return appt, nil
}

// List returns a professional's appointments starting in [from, to). Zero bounds are open.
func (s *Service) List(ctx context.Context, professionalID string, from, to time.Time, limit int) ([]model.Appointment, error) {
	return s.store.ListAppointments(ctx, professionalID, from, to, limit)
}

// PastAppointments is the read-only history used by external risk scoring, ordered by start.
func (s *Service) PastAppointments(ctx context.Context, clientID, professionalID string, before time.Time) ([]model.Appointment, error) {
	if before.IsZero() {
		before = s.now()
	}
	return s.store.PastAppointments(ctx, clientID, professionalID, before)
}

func (s *Service) ListHistory(ctx context.Context, appointmentID string) ([]model.RescheduleHistory, error) {
	if _, err := s.Get(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, appointmentID)
}

// ReminderJobs lists the reminder jobs bound to an appointment, oldest fire time first.
func (s *Service) ReminderJobs(ctx context.Context, appointmentID string) ([]model.ReminderJob, error) {
	if _, err := s.Get(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.store.ListJobs(ctx, appointmentID)
}

func appointmentPayload(appt model.Appointment, extra map[string]any) map[string]any {
	payload := map[string]any{
		"appointment_id":   appt.ID,
		"professional_id":  appt.ProfessionalID,
		"client_id":        appt.ClientID,
		"staff_id":         appt.StaffID,
		"service_id":       appt.ServiceID,
		"price_cents":      appt.PriceCents,
		"duration_minutes": appt.DurationMinutes,
		"start_time":       appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":         appt.EndTime().UTC().Format(time.RFC3339),
		"status":           appt.Status,
		"version":          appt.Version,
	}
	if appt.CancelledAt != nil {
		payload["cancelled_at"] = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}
