package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type RescheduleRequest struct {
	AppointmentID   string
	NewStart        time.Time
	DurationMinutes int // 0 keeps the current duration
	Reason          string
	InitiatedBy     model.Initiator
}

type RescheduleResult struct {
	Success        bool
	Appointment    model.Appointment
	Conflicts      []ConflictDetail
	SuggestedTimes []availability.Option
	Validation     policy.Result
	Error          string
	// RemindersCancelled and RemindersCreated count the jobs rebound by a successful move.
	RemindersCancelled int
	RemindersCreated   int
}

// Reschedule moves an appointment. Policy checks, the conflict check, the update,
// the history entry and the reminder rebind run under the professional's lock, so
// the appointment either moves with all of them or not at all. A rejected attempt
// still returns a result describing why, together with the typed error.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (RescheduleResult, error) {
	ctx, span := s.tracer.Start(ctx, "booking.reschedule", trace.WithAttributes(
		attribute.String("appointment.id", req.AppointmentID),
		attribute.String("reschedule.initiated_by", string(req.InitiatedBy)),
	))
	defer span.End()

	res, err := s.reschedule(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Error = err.Error()
	}
	span.SetAttributes(attribute.Bool("reschedule.success", res.Success))
	return res, err
}

func (s *Service) reschedule(ctx context.Context, req RescheduleRequest) (RescheduleResult, error) {
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.InitiatedBy == "" {
		req.InitiatedBy = model.InitiatorClient
	}
	switch {
	case req.AppointmentID == "":
		return RescheduleResult{}, invalid("appointment_id", "REQUIRED", "appointment_id is required")
	case req.NewStart.IsZero():
		return RescheduleResult{}, invalid("new_start", "REQUIRED", "new_start is required")
	case req.DurationMinutes < 0:
		return RescheduleResult{}, invalid("duration_minutes", "INVALID_DURATION", "duration must be positive")
	case !req.InitiatedBy.Valid():
		return RescheduleResult{}, invalid("initiated_by", "INVALID_INITIATOR", "unknown initiator %q", req.InitiatedBy)
	}

	current, err := s.Get(ctx, req.AppointmentID)
	if err != nil {
		return RescheduleResult{}, err
	}
	newStart := req.NewStart.UTC()

	var (
		res       RescheduleResult
		attempt   *model.RescheduleHistory
		rejection error
		conflict  *ConflictError
		duration  time.Duration
		allowed   slotFilter
	)
	errRejected := errors.New("reschedule rejected")

	err = s.store.WithProfessional(ctx, current.ProfessionalID, func(tx storage.Tx) error {
		appt, err := tx.GetAppointment(ctx, req.AppointmentID)
		if err != nil {
			return notFound(err, "appointment", req.AppointmentID)
		}
		res.Appointment = appt
		minutes := req.DurationMinutes
		if minutes == 0 {
			minutes = appt.DurationMinutes
		}
		duration = time.Duration(minutes) * time.Minute

		entry := &model.RescheduleHistory{
			AppointmentID:  appt.ID,
			ProfessionalID: appt.ProfessionalID,
			OriginalStart:  appt.StartTime,
			RequestedStart: newStart,
			Reason:         req.Reason,
			InitiatedBy:    req.InitiatedBy,
		}

		pol, err := s.policyFor(ctx, tx, appt.ProfessionalID)
		if err != nil {
			return err
		}
		history, err := tx.ListHistory(ctx, appt.ID)
		if err != nil {
			return err
		}
		cal, err := loadCalendar(ctx, tx, appt.ProfessionalID)
		if err != nil {
			return err
		}

		now := s.now()
		in := policy.Input{
			Appointment:       appt,
			Requested:         newStart,
			RequestedDuration: duration,
			Policy:            pol,
			History:           history,
			Now:               now,
			Location:          cal.Location,
		}
		res.Validation = policy.ValidateInput(in)
		allowed = policyFilter(in)
		if !res.Validation.IsValid {
			verr := &ValidationError{Policy: &res.Validation}
			for _, issue := range res.Validation.Errors {
				verr.Reasons = append(verr.Reasons, Reason{Field: "new_start", Code: issue.Code, Message: issue.Message})
			}
			entry.Outcome, entry.Detail = model.OutcomeDenied, issueCodes(res.Validation.Errors)
			attempt, rejection = entry, verr
			return errRejected
		}
		if ok, reason := cal.Fits(newStart, duration); !ok {
			entry.Outcome, entry.Detail = model.OutcomeDenied, reason
			attempt = entry
			rejection = invalid("new_start", strings.ToUpper(reason), "requested slot is unavailable: %s", reason)
			return errRejected
		}

		overlapping, err := s.detector(tx).Conflicts(ctx, appt.ProfessionalID, newStart, duration, appt.ID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			conflict = conflictFrom(overlapping)
			entry.Outcome, entry.Detail = model.OutcomeConflict, conflictIDs(conflict)
			attempt, rejection = entry, conflict
			return errRejected
		}

		appt.StartTime = newStart
		appt.DurationMinutes = minutes
		if appt.Status == model.StatusConfirmed {
			// The client confirms the new time again.
			appt.Status = model.StatusScheduled
		}
		appt.Version++
		appt.UpdatedAt = now.UTC()
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				conflict = &ConflictError{}
				entry.Outcome = model.OutcomeConflict
				attempt, rejection = entry, conflict
				return errRejected
			}
			return err
		}

		entry.Outcome = model.OutcomeConfirmed
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return err
		}
		res.RemindersCancelled, res.RemindersCreated, err = s.reminders.Rebind(ctx, tx, appt)
		if err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, outbox.NewEvent("appointment", appt.ID, outbox.AppointmentRescheduled, appointmentPayload(appt, map[string]any{
			"previous_start_time": entry.OriginalStart.UTC().Format(time.RFC3339),
			"reason":              req.Reason,
			"initiated_by":        req.InitiatedBy,
		}))); err != nil {
			return err
		}
		res.Appointment = appt
		return nil
	})

	if errors.Is(err, errRejected) {
		s.recordAttempt(ctx, attempt)
		if conflict != nil {
			conflict.Suggestions = s.suggest(ctx, current.ProfessionalID, duration, newStart, req.AppointmentID, allowed)
			res.Conflicts = conflict.Conflicts
			res.SuggestedTimes = conflict.Suggestions
		}
		return res, rejection
	}
	if err != nil {
		return res, err
	}

	res.Success = true
	s.logger.Info("appointment rescheduled",
		"appointment_id", res.Appointment.ID,
		"from", current.StartTime,
		"to", res.Appointment.StartTime,
		"reminders_cancelled", res.RemindersCancelled,
		"reminders_created", res.RemindersCreated,
	)
	s.notifyClient(ctx, res.Appointment, rescheduledTemplate)
	return res, nil
}

// recordAttempt appends a rejected attempt to the ledger in its own transaction.
// Rejected attempts never count toward the reschedule limit.
func (s *Service) recordAttempt(ctx context.Context, entry *model.RescheduleHistory) {
	if entry == nil {
		return
	}
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		return tx.AppendHistory(ctx, entry)
	})
	if err != nil {
		s.logger.Warn("failed to record reschedule attempt", "err", err, "appointment_id", entry.AppointmentID, "outcome", entry.Outcome)
	}
}

type RescheduleOptions struct {
	Available       []availability.Option
	Unavailable     []availability.Option
	Policy          model.ReschedulePolicy
	RescheduleCount int
}

// FindRescheduleOptions searches around the appointment's current start. Slots that
// the reschedule policy would reject are reported unavailable with the rule's code.
func (s *Service) FindRescheduleOptions(ctx context.Context, appointmentID string, prefs availability.Preferences) (RescheduleOptions, error) {
	appt, err := s.Get(ctx, appointmentID)
	if err != nil {
		return RescheduleOptions{}, err
	}
	pol, err := s.policies.ReschedulePolicy(ctx, appt.ProfessionalID)
	if err != nil {
		return RescheduleOptions{}, err
	}
	history, err := s.store.ListHistory(ctx, appt.ID)
	if err != nil {
		return RescheduleOptions{}, err
	}
	cal, err := loadCalendar(ctx, s.store, appt.ProfessionalID)
	if err != nil {
		return RescheduleOptions{}, err
	}

	prefs.ExcludeAppointmentID = appt.ID
	options, err := s.searcher.FindOptions(ctx, appt.ProfessionalID, appt.Duration(), appt.StartTime, prefs)
	if errors.Is(err, availability.ErrInvalidDuration) {
		return RescheduleOptions{}, invalid("duration_minutes", "INVALID_DURATION", "%v", err)
	}
	if err != nil {
		return RescheduleOptions{}, fmt.Errorf("find reschedule options: %w", err)
	}

	out := RescheduleOptions{
		Available:       []availability.Option{},
		Unavailable:     []availability.Option{},
		Policy:          pol,
		RescheduleCount: model.ConfirmedReschedules(history, appt.ID),
	}
	for _, opt := range policyFilter(policy.Input{
		Appointment: appt,
		Policy:      pol,
		History:     history,
		Now:         s.now(),
		Location:    cal.Location,
	}).apply(options) {
		if opt.Available {
			out.Available = append(out.Available, opt)
		} else {
			out.Unavailable = append(out.Unavailable, opt)
		}
	}
	return out, nil
}

// slotFilter reports whether a candidate slot is acceptable and, if not, why.
type slotFilter func(opt availability.Option) (bool, string)

// policyFilter checks each candidate start as if it were the requested one.
func policyFilter(in policy.Input) slotFilter {
	return func(opt availability.Option) (bool, string) {
		candidate := in
		candidate.Requested = opt.Start
		check := policy.ValidateInput(candidate)
		if !check.IsValid {
			return false, check.Errors[0].Code
		}
		return true, ""
	}
}

// apply marks available options the filter rejects as unavailable, keeping the order.
func (f slotFilter) apply(options []availability.Option) []availability.Option {
	if f == nil {
		return options
	}
	for i, opt := range options {
		if !opt.Available {
			continue
		}
		if ok, reason := f(opt); !ok {
			options[i].Available = false
			options[i].Reason = reason
		}
	}
	return options
}

func issueCodes(issues []policy.Issue) string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return strings.Join(out, ",")
}

func conflictIDs(c *ConflictError) string {
	ids := make([]string, 0, len(c.Conflicts))
	for _, d := range c.Conflicts {
		ids = append(ids, d.AppointmentID)
	}
	return strings.Join(ids, ",")
}
