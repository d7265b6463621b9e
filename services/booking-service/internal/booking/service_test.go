package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// Monday 2026-03-02 08:00 UTC.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(dayOffset, hour, minute int) time.Time {
	return monday.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	store *storage.Memory
	svc   *Service
	now   time.Time
}

type chanSender struct {
	ch chan notify.Message
}

func (s chanSender) Send(_ context.Context, msg notify.Message) error {
	s.ch <- msg
	return nil
}

func newFixture(t *testing.T, sender notify.Sender) *fixture {
	t.Helper()
	f := &fixture{now: at(0, 8, 0)}
	clock := func() time.Time { return f.now }
	f.store = storage.NewMemory(clock)

	var hours []model.WorkingHours
	for wd := time.Monday; wd <= time.Friday; wd++ {
		hours = append(hours, model.WorkingHours{
			ProfessionalID:   "pro-1",
			Weekday:          wd,
			IsOpen:           true,
			OpenMinute:       9 * 60,
			CloseMinute:      18 * 60,
			BreakStartMinute: 12 * 60,
			BreakEndMinute:   13 * 60,
		})
	}
	ctx := context.Background()
	err := f.store.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.UpsertProfessional(ctx, model.Professional{ID: "pro-1", Name: "Dana", Timezone: "UTC"}); err != nil {
			return err
		}
		for _, id := range []string{"client-1", "client-2"} {
			if err := tx.UpsertClient(ctx, model.Client{ID: id, Name: "Sam", Phone: "+8801700000000"}); err != nil {
				return err
			}
		}
		if err := tx.UpsertService(ctx, model.Service{ID: "svc-1", ProfessionalID: "pro-1", Name: "Haircut", PriceCents: 2500, DurationMinutes: 60}); err != nil {
			return err
		}
		return tx.ReplaceWorkingHours(ctx, "pro-1", hours)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	f.svc = NewService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Now: clock, Sender: sender})
	return f
}

func (f *fixture) book(t *testing.T, start time.Time) model.Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
		ProfessionalID: "pro-1",
		ClientID:       "client-1",
		ServiceID:      "svc-1",
		StartTime:      start,
	})
	if err != nil {
		t.Fatalf("book %s: %v", start, err)
	}
	return appt
}

func (f *fixture) events(eventType string) int {
	n := 0
	for _, rec := range f.store.PendingOutbox() {
		if rec.Event.EventType == eventType {
			n++
		}
	}
	return n
}

func pendingJobs(t *testing.T, store *storage.Memory, appointmentID string) []model.ReminderJob {
	t.Helper()
	jobs, err := store.ListJobs(context.Background(), appointmentID)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	var out []model.ReminderJob
	for _, j := range jobs {
		if j.Status == model.JobPending {
			out = append(out, j)
		}
	}
	return out
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	if appt.Status != model.StatusScheduled || appt.DurationMinutes != 60 || appt.ServiceName != "Haircut" || appt.PriceCents != 2500 {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if jobs := pendingJobs(t, f.store, appt.ID); len(jobs) != 2 {
		t.Fatalf("expected 24h and 2h reminders, got %d", len(jobs))
	}
	if got := f.events(outbox.AppointmentBooked); got != 1 {
		t.Fatalf("booked events = %d", got)
	}
}

func TestCreateRejectsUnavailableSlots(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name  string
		start time.Time
		code  string
	}{
		{"sunday", at(6, 10, 0), "CLOSED_WEEKDAY"},
		{"break", at(2, 12, 30), "BREAK"},
		{"after close", at(2, 17, 30), "OUTSIDE_HOURS"},
		{"past", at(-7, 10, 0), "PAST_TIME"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
				ProfessionalID: "pro-1", ClientID: "client-1", ServiceID: "svc-1", StartTime: tc.start,
			})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Reasons[0].Code != tc.code {
				t.Fatalf("code = %s, want %s", verr.Reasons[0].Code, tc.code)
			}
		})
	}

	_, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
		ProfessionalID: "pro-1", ClientID: "nobody", ServiceID: "svc-1", StartTime: at(2, 10, 0),
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "client" {
		t.Fatalf("expected client NotFoundError, got %v", err)
	}
}

func TestCreateConflictSuggestsAlternatives(t *testing.T) {
	f := newFixture(t, nil)
	first := f.book(t, at(2, 10, 0))

	_, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
		ProfessionalID: "pro-1", ClientID: "client-2", ServiceID: "svc-1", StartTime: at(2, 10, 30),
	})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(cerr.Conflicts) != 1 || cerr.Conflicts[0].AppointmentID != first.ID {
		t.Fatalf("unexpected conflicts: %+v", cerr.Conflicts)
	}
	if len(cerr.Suggestions) == 0 || len(cerr.Suggestions) > DefaultMaxSuggestions {
		t.Fatalf("suggestions = %d", len(cerr.Suggestions))
	}
	for _, s := range cerr.Suggestions {
		if !s.Available || (s.Start.Before(first.EndTime()) && first.StartTime.Before(s.End)) {
			t.Fatalf("suggestion overlaps the booked slot: %+v", s)
		}
	}
}

func TestConcurrentCreatesNeverOverlap(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	booked, conflicts := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := at(2, 10, 0)
			if i%2 == 1 {
				start = at(2, 10, 30)
			}
			_, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
				ProfessionalID: "pro-1", ClientID: "client-1", ServiceID: "svc-1", StartTime: start,
			})
			mu.Lock()
			defer mu.Unlock()
			var cerr *ConflictError
			switch {
			case err == nil:
				booked++
			case errors.As(err, &cerr):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if booked != 1 || conflicts != 19 {
		t.Fatalf("booked=%d conflicts=%d, want 1/19", booked, conflicts)
	}
	appts, _ := f.svc.List(context.Background(), "pro-1", time.Time{}, time.Time{}, 0)
	if len(appts) != 1 {
		t.Fatalf("stored %d appointments", len(appts))
	}
}

func TestCreateWithIdempotencyKey(t *testing.T) {
	f := newFixture(t, nil)
	req := CreateRequest{ProfessionalID: "pro-1", ClientID: "client-1", ServiceID: "svc-1", StartTime: at(2, 10, 0), IdempotencyKey: "req-1"}

	first, err := f.svc.CreateAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := f.svc.CreateAppointment(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("replay returned %s, want %s", second.ID, first.ID)
	}
	if got := f.events(outbox.AppointmentBooked); got != 1 {
		t.Fatalf("booked events = %d", got)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	first, err := f.svc.Cancel(context.Background(), appt.ID, "sick")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.now = f.now.Add(time.Hour)
	second, err := f.svc.Cancel(context.Background(), appt.ID, "again")
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	if first.Status != model.StatusCancelled || first.CancelledAt == nil || first.CancelReason != "sick" {
		t.Fatalf("unexpected cancelled appointment: %+v", first)
	}
	if !second.CancelledAt.Equal(*first.CancelledAt) || second.Version != first.Version || second.CancelReason != "sick" {
		t.Fatalf("second cancel changed the appointment: %+v", second)
	}
	if jobs := pendingJobs(t, f.store, appt.ID); len(jobs) != 0 {
		t.Fatalf("pending jobs after cancel: %d", len(jobs))
	}
	if got := f.events(outbox.AppointmentCancelled); got != 1 {
		t.Fatalf("cancelled events = %d", got)
	}

	// The freed slot can be booked again.
	f.book(t, at(2, 10, 0))
}

func TestRescheduleRebindsReminders(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: appt.ID,
		NewStart:      at(3, 14, 0),
		Reason:        "traffic",
		InitiatedBy:   model.InitiatorClient,
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !res.Success || !res.Appointment.StartTime.Equal(at(3, 14, 0)) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RemindersCancelled != 2 || res.RemindersCreated != 2 {
		t.Fatalf("rebind cancelled=%d created=%d", res.RemindersCancelled, res.RemindersCreated)
	}
	for _, j := range pendingJobs(t, f.store, appt.ID) {
		if want := at(3, 14, 0).Add(-time.Duration(j.OffsetHours) * time.Hour); !j.FireAt.Equal(want) {
			t.Fatalf("job fires at %s, want %s", j.FireAt, want)
		}
	}

	history, err := f.svc.ListHistory(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Outcome != model.OutcomeConfirmed || !history[0].OriginalStart.Equal(at(2, 10, 0)) {
		t.Fatalf("unexpected history: %+v", history)
	}
	if got := f.events(outbox.AppointmentRescheduled); got != 1 {
		t.Fatalf("rescheduled events = %d", got)
	}
}

func TestRescheduleConflictIsAtomic(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))
	other := f.book(t, at(2, 14, 0))
	jobsBefore := pendingJobs(t, f.store, appt.ID)

	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: at(2, 14, 30)})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if res.Success || len(res.Conflicts) != 1 || res.Conflicts[0].AppointmentID != other.ID {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.SuggestedTimes) == 0 {
		t.Fatalf("expected suggestions")
	}

	stored, _ := f.svc.Get(context.Background(), appt.ID)
	if !stored.StartTime.Equal(appt.StartTime) || stored.Version != appt.Version {
		t.Fatalf("appointment changed: %+v", stored)
	}
	jobsAfter := pendingJobs(t, f.store, appt.ID)
	if len(jobsAfter) != len(jobsBefore) || jobsAfter[0].ID != jobsBefore[0].ID {
		t.Fatalf("reminder jobs changed")
	}
	history, _ := f.svc.ListHistory(context.Background(), appt.ID)
	if len(history) != 1 || history[0].Outcome != model.OutcomeConflict {
		t.Fatalf("expected one conflict entry, got %+v", history)
	}
	if got := f.events(outbox.AppointmentRescheduled); got != 0 {
		t.Fatalf("rescheduled events = %d", got)
	}
}

func (f *fixture) setPolicy(t *testing.T, edit func(*model.ReschedulePolicy)) model.ReschedulePolicy {
	t.Helper()
	pol := model.DefaultReschedulePolicy()
	pol.ProfessionalID = "pro-1"
	edit(&pol)
	err := f.store.InTx(context.Background(), func(tx storage.Tx) error {
		return tx.PutReschedulePolicy(context.Background(), pol)
	})
	if err != nil {
		t.Fatalf("put policy: %v", err)
	}
	return pol
}

func TestRescheduleSuggestionsRespectPolicy(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(3, 10, 0))
	for _, h := range []int{9, 10, 11, 13, 14, 15, 16, 17} {
		f.book(t, at(2, h, 0))
	}
	pol := f.setPolicy(t, func(p *model.ReschedulePolicy) {
		p.Blackouts = []model.BlackoutRange{{StartDate: "2026-03-03", EndDate: "2026-03-03", Reason: "training"}}
	})

	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: at(2, 10, 0)})
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(res.SuggestedTimes) == 0 {
		t.Fatalf("expected suggestions")
	}
	if !res.SuggestedTimes[0].Start.Equal(at(3, 9, 0)) {
		t.Fatalf("nearest suggestion = %s, want Thursday 09:00", res.SuggestedTimes[0].Start)
	}
	for _, opt := range res.SuggestedTimes {
		if check := policy.Validate(appt, opt.Start, pol, nil, f.now); !check.IsValid {
			t.Fatalf("suggestion %s rejected by the policy: %+v", opt.Start, check.Errors)
		}
	}
}

func TestCreateHonoursStoredBuffer(t *testing.T) {
	f := newFixture(t, nil)
	f.setPolicy(t, func(p *model.ReschedulePolicy) { p.BufferMinutes = 15 })
	first := f.book(t, at(2, 10, 0))

	_, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
		ProfessionalID: "pro-1", ClientID: "client-2", ServiceID: "svc-1", StartTime: at(2, 11, 0),
	})
	var cerr *ConflictError
	if !errors.As(err, &cerr) || len(cerr.Conflicts) != 1 || cerr.Conflicts[0].AppointmentID != first.ID {
		t.Fatalf("expected buffer conflict with %s, got %v", first.ID, err)
	}
	if _, err := f.svc.CreateAppointment(context.Background(), CreateRequest{
		ProfessionalID: "pro-1", ClientID: "client-2", ServiceID: "svc-1", StartTime: at(2, 11, 15),
	}); err != nil {
		t.Fatalf("slot after the buffer: %v", err)
	}
}

func TestRescheduleChangesDurationOnly(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: appt.StartTime, DurationMinutes: 90})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !res.Success || res.Appointment.DurationMinutes != 90 || !res.Appointment.StartTime.Equal(appt.StartTime) {
		t.Fatalf("unexpected result: %+v", res.Appointment)
	}

	_, err = f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: appt.StartTime})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reasons[0].Code != policy.CodeUnchanged {
		t.Fatalf("expected UNCHANGED, got %v", err)
	}
}

func TestRescheduleEnforcesNoticePeriod(t *testing.T) {
	f := newFixture(t, nil)
	soon := f.book(t, at(0, 15, 0))

	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: soon.ID, NewStart: at(3, 10, 0)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Policy == nil {
		t.Fatalf("expected policy ValidationError, got %v", err)
	}
	if verr.Reasons[0].Code != policy.CodeNoticePeriod || res.Validation.IsValid {
		t.Fatalf("unexpected validation: %+v", res.Validation)
	}
	stored, _ := f.svc.Get(context.Background(), soon.ID)
	if !stored.StartTime.Equal(at(0, 15, 0)) {
		t.Fatalf("appointment moved despite the notice period")
	}
	history, _ := f.svc.ListHistory(context.Background(), soon.ID)
	if len(history) != 1 || history[0].Outcome != model.OutcomeDenied {
		t.Fatalf("expected one denied entry, got %+v", history)
	}
}

func TestFourthRescheduleRejected(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	moves := []time.Time{at(3, 10, 0), at(4, 10, 0), at(2, 15, 0)}
	for i, to := range moves {
		res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: to})
		if err != nil {
			t.Fatalf("move %d: %v", i+1, err)
		}
		if i == 2 && (len(res.Validation.Warnings) == 0 || res.Validation.Warnings[0].Code != policy.CodeLastReschedule) {
			t.Fatalf("third move should warn about the last reschedule: %+v", res.Validation.Warnings)
		}
	}

	_, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: at(3, 15, 0)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reasons[0].Code != policy.CodeMaxReschedules {
		t.Fatalf("expected MAX_RESCHEDULES, got %v", err)
	}

	opts, err := f.svc.FindRescheduleOptions(context.Background(), appt.ID, availability.Preferences{})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.RescheduleCount != 3 {
		t.Fatalf("reschedule count = %d, denied attempts must not count", opts.RescheduleCount)
	}
	if len(opts.Available) != 0 {
		t.Fatalf("no slot should be offered once the limit is reached")
	}
}

func TestRescheduleResetsConfirmation(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))
	if _, err := f.svc.Confirm(context.Background(), appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	res, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: at(3, 10, 0)})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if res.Appointment.Status != model.StatusScheduled {
		t.Fatalf("status = %s, want SCHEDULED", res.Appointment.Status)
	}
}

func TestConcurrentReschedulesIntoSameSlot(t *testing.T) {
	f := newFixture(t, nil)
	a := f.book(t, at(2, 10, 0))
	b := f.book(t, at(2, 14, 0))

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: id, NewStart: at(3, 10, 0)})
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		var cerr *ConflictError
		switch {
		case err == nil:
			wins++
		case !errors.As(err, &cerr):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d reschedules won the same slot", wins)
	}
}

func TestFindRescheduleOptions(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, at(2, 10, 0))

	opts, err := f.svc.FindRescheduleOptions(context.Background(), appt.ID, availability.Preferences{})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(opts.Available) == 0 {
		t.Fatalf("expected available options")
	}
	if !opts.Available[0].Start.Equal(at(2, 9, 30)) {
		t.Fatalf("nearest option = %s, want Wednesday 09:30", opts.Available[0].Start)
	}
	reasons := map[time.Time]string{}
	for _, o := range opts.Unavailable {
		reasons[o.Start] = o.Reason
	}
	if reasons[at(2, 10, 0)] != policy.CodeUnchanged {
		t.Fatalf("current slot reason = %q", reasons[at(2, 10, 0)])
	}
	if reasons[at(0, 15, 0)] != policy.CodeNoticePeriod {
		t.Fatalf("short notice slot reason = %q", reasons[at(0, 15, 0)])
	}
	if reasons[at(2, 12, 0)] != "break" {
		t.Fatalf("break slot reason = %q", reasons[at(2, 12, 0)])
	}
	if opts.Policy.MaxReschedules != 3 || opts.RescheduleCount != 0 {
		t.Fatalf("unexpected policy summary: %+v", opts)
	}
}

func TestRescheduleNotifiesClient(t *testing.T) {
	sender := chanSender{ch: make(chan notify.Message, 1)}
	f := newFixture(t, sender)
	appt := f.book(t, at(2, 10, 0))

	if _, err := f.svc.Reschedule(context.Background(), RescheduleRequest{AppointmentID: appt.ID, NewStart: at(3, 10, 0)}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	select {
	case msg := <-sender.ch:
		if msg.Channel != model.ChannelWhatsApp || !strings.Contains(msg.Body, "moved to Thu, 05 Mar 2026 at 10:00") {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("client was not notified")
	}
}

func TestPastAppointments(t *testing.T) {
	f := newFixture(t, nil)
	late := f.book(t, at(3, 10, 0))
	early := f.book(t, at(2, 10, 0))

	f.now = at(10, 0, 0)
	past, err := f.svc.PastAppointments(context.Background(), "client-1", "pro-1", time.Time{})
	if err != nil {
		t.Fatalf("past: %v", err)
	}
	if len(past) != 2 || past[0].ID != early.ID || past[1].ID != late.ID {
		t.Fatalf("unexpected order: %+v", past)
	}
}

func TestDaySlots(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, at(2, 10, 0))

	slots, err := f.svc.DaySlots(context.Background(), SlotsRequest{ProfessionalID: "pro-1", ServiceID: "svc-1", Date: "2026-03-04", StepMinutes: 30})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	starts := map[time.Time]bool{}
	for _, s := range slots {
		starts[s.Start] = true
	}
	for _, want := range []time.Time{at(2, 9, 0), at(2, 11, 0), at(2, 11, 30), at(2, 13, 0), at(2, 17, 0)} {
		if !starts[want] {
			t.Fatalf("missing slot %s in %v", want, slots)
		}
	}
	for _, blocked := range []time.Time{at(2, 9, 30), at(2, 10, 0), at(2, 10, 30), at(2, 12, 0), at(2, 12, 30), at(2, 17, 30)} {
		if starts[blocked] {
			t.Fatalf("unexpected slot %s", blocked)
		}
	}

	closed, err := f.svc.DaySlots(context.Background(), SlotsRequest{ProfessionalID: "pro-1", ServiceID: "svc-1", Date: "2026-03-08"})
	if err != nil || len(closed) != 0 {
		t.Fatalf("sunday slots = %v, %v", closed, err)
	}
}
