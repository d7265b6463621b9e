package policy

import (
	"context"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // Monday

func appointmentAt(start time.Time) model.Appointment {
	return model.Appointment{ID: "a1", StartTime: start, DurationMinutes: 60, Status: model.StatusScheduled}
}

func hasCode(issues []Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestNoticePeriodRejectsSoonAppointment(t *testing.T) {
	appt := appointmentAt(now.Add(2 * time.Hour))
	res := Validate(appt, now.Add(72*time.Hour), model.DefaultReschedulePolicy(), nil, now)
	if res.IsValid || !hasCode(res.Errors, CodeNoticePeriod) {
		t.Fatalf("expected notice violation, got %+v", res)
	}
}

func TestNoticePeriodChecksRequestedTime(t *testing.T) {
	appt := appointmentAt(now.Add(72 * time.Hour))
	res := Validate(appt, now.Add(3*time.Hour), model.DefaultReschedulePolicy(), nil, now)
	if !hasCode(res.Errors, CodeNoticePeriod) {
		t.Fatalf("expected notice violation for the requested time, got %+v", res)
	}
}

func TestSameDayDowngradesNoticeToWarning(t *testing.T) {
	p := model.DefaultReschedulePolicy()
	p.AllowSameDay = true
	res := Validate(appointmentAt(now.Add(2*time.Hour)), now.Add(5*time.Hour), p, nil, now)
	if !res.IsValid || !hasCode(res.Warnings, CodeShortNotice) {
		t.Fatalf("expected valid result with short notice warning, got %+v", res)
	}
}

func TestMaxReschedules(t *testing.T) {
	appt := appointmentAt(now.Add(72 * time.Hour))
	history := []model.RescheduleHistory{
		{AppointmentID: "a1", Outcome: model.OutcomeConfirmed},
		{AppointmentID: "a1", Outcome: model.OutcomeConfirmed},
		{AppointmentID: "a1", Outcome: model.OutcomeDenied},
	}
	res := Validate(appt, now.Add(96*time.Hour), model.DefaultReschedulePolicy(), history, now)
	if !res.IsValid || !hasCode(res.Warnings, CodeLastReschedule) {
		t.Fatalf("expected third reschedule allowed with warning, got %+v", res)
	}

	history = append(history, model.RescheduleHistory{AppointmentID: "a1", Outcome: model.OutcomeConfirmed})
	res = Validate(appt, now.Add(96*time.Hour), model.DefaultReschedulePolicy(), history, now)
	if res.IsValid || !hasCode(res.Errors, CodeMaxReschedules) {
		t.Fatalf("expected fourth reschedule rejected, got %+v", res)
	}

	unlimited := model.DefaultReschedulePolicy()
	unlimited.MaxReschedules = 0
	if res := Validate(appt, now.Add(96*time.Hour), unlimited, history, now); !res.IsValid {
		t.Fatalf("expected unlimited policy to pass, got %+v", res)
	}
}

func TestBlackoutUsesLocalDate(t *testing.T) {
	p := model.DefaultReschedulePolicy()
	p.Blackouts = []model.BlackoutRange{{StartDate: "2026-03-10", EndDate: "2026-03-12", Reason: "training"}}
	appt := appointmentAt(now.Add(72 * time.Hour))

	// 20:00 UTC on the 9th is already the 10th at UTC+6.
	requested := time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC)
	res := ValidateInput(Input{Appointment: appt, Requested: requested, Policy: p, Now: now, Location: time.FixedZone("UTC+6", 6*3600)})
	if !hasCode(res.Errors, CodeBlackout) {
		t.Fatalf("expected blackout, got %+v", res)
	}
	if res := Validate(appt, requested, p, nil, now); hasCode(res.Errors, CodeBlackout) {
		t.Fatalf("expected no blackout in UTC, got %+v", res)
	}
}

func TestGuardsAndWarnings(t *testing.T) {
	appt := appointmentAt(now.Add(72 * time.Hour))
	p := model.DefaultReschedulePolicy()

	if res := Validate(appt, now.Add(-time.Hour), p, nil, now); !hasCode(res.Errors, CodePastTime) {
		t.Fatalf("expected past time error, got %+v", res)
	}
	if res := Validate(appt, appt.StartTime, p, nil, now); !hasCode(res.Errors, CodeUnchanged) {
		t.Fatalf("expected unchanged error, got %+v", res)
	}
	done := appt
	done.Status = model.StatusCompleted
	if res := Validate(done, now.Add(96*time.Hour), p, nil, now); !hasCode(res.Errors, CodeInvalidStatus) {
		t.Fatalf("expected invalid status error, got %+v", res)
	}
	if res := Validate(appt, now.Add(90*24*time.Hour), p, nil, now); !res.IsValid || !hasCode(res.Warnings, CodeFarFuture) {
		t.Fatalf("expected far future warning, got %+v", res)
	}
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	if res := Validate(appt, saturday, p, nil, now); !hasCode(res.Warnings, CodeWeekendMove) {
		t.Fatalf("expected weekend move warning, got %+v", res)
	}
}

func TestUnchangedComparesDuration(t *testing.T) {
	appt := appointmentAt(now.Add(72 * time.Hour))
	cases := []struct {
		name      string
		duration  time.Duration
		unchanged bool
	}{
		{name: "duration kept", duration: 0, unchanged: true},
		{name: "same duration", duration: time.Hour, unchanged: true},
		{name: "longer", duration: 90 * time.Minute, unchanged: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidateInput(Input{
				Appointment:       appt,
				Requested:         appt.StartTime,
				RequestedDuration: tc.duration,
				Policy:            model.DefaultReschedulePolicy(),
				Now:               now,
			})
			if got := hasCode(res.Errors, CodeUnchanged); got != tc.unchanged {
				t.Fatalf("unchanged = %v, want %v: %+v", got, tc.unchanged, res)
			}
		})
	}
}

func TestValidateDoesNotMutateInputs(t *testing.T) {
	appt := appointmentAt(now.Add(2 * time.Hour))
	history := []model.RescheduleHistory{{AppointmentID: "a1", Outcome: model.OutcomeConfirmed}}
	before := appt
	_ = Validate(appt, now.Add(time.Hour), model.DefaultReschedulePolicy(), history, now)
	if appt != before || len(history) != 1 {
		t.Fatal("validate must not mutate its inputs")
	}
}

type policyReader map[string]model.ReschedulePolicy

func (r policyReader) GetReschedulePolicy(_ context.Context, id string) (model.ReschedulePolicy, error) {
	p, ok := r[id]
	if !ok {
		return model.ReschedulePolicy{}, storage.ErrNotFound
	}
	return p, nil
}

func TestStoreProviderFallsBack(t *testing.T) {
	prov := NewStoreProvider(policyReader{"p2": {ProfessionalID: "p2", MinimumNotice: time.Hour, BufferMinutes: 10}}, model.DefaultReschedulePolicy())
	ctx := context.Background()

	p, err := prov.ReschedulePolicy(ctx, "p1")
	if err != nil || p.MinimumNotice != 24*time.Hour || p.MaxReschedules != 3 || p.ProfessionalID != "p1" {
		t.Fatalf("expected default policy, got %+v %v", p, err)
	}
	p, err = prov.ReschedulePolicy(ctx, "p2")
	if err != nil || p.MinimumNotice != time.Hour || p.FarFutureDays != 60 {
		t.Fatalf("expected stored policy, got %+v %v", p, err)
	}
	buf, err := BufferSource{Provider: prov}.Buffer(ctx, "p2")
	if err != nil || buf != 10*time.Minute {
		t.Fatalf("expected 10m buffer, got %s %v", buf, err)
	}
}
