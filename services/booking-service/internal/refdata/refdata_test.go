package refdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

func TestApplyUpserts(t *testing.T) {
	store := storage.NewMemory(nil)
	a := NewApplier(store)
	ctx := context.Background()

	events := []struct {
		eventType string
		payload   string
	}{
		{ProfessionalUpserted, `{"professional_id":"pro-1","name":"Dana","timezone":"Asia/Dhaka"}`},
		{ClientUpserted, `{"client_id":"client-1","name":"Sam","phone":"+8801700000000"}`},
		{ServiceUpserted, `{"service_id":"svc-1","professional_id":"pro-1","name":"Haircut","price_cents":2500,"duration_minutes":45}`},
		{CalendarUpdated, `{"professional_id":"pro-1","working_hours":[{"weekday":1,"is_working":true,"start_minute":540,"end_minute":1080,"break_start_minute":720,"break_end_minute":780}],"holidays":[{"date":"2026-03-26","kind":"holiday","description":"Independence Day"}]}`},
		{PolicyUpdated, `{"professional_id":"pro-1","minimum_notice_hours":12,"max_reschedules":2,"blackouts":[{"start_date":"2026-12-24","end_date":"2026-12-26"}]}`},
	}
	for _, evt := range events {
		if err := a.Apply(ctx, evt.eventType, []byte(evt.payload)); err != nil {
			t.Fatalf("apply %s: %v", evt.eventType, err)
		}
	}

	pro, err := store.GetProfessional(ctx, "pro-1")
	if err != nil || pro.Timezone != "Asia/Dhaka" {
		t.Fatalf("professional = %+v, %v", pro, err)
	}
	svc, err := store.GetService(ctx, "svc-1")
	if err != nil || svc.DurationMinutes != 45 || svc.PriceCents != 2500 {
		t.Fatalf("service = %+v, %v", svc, err)
	}
	hours, _ := store.ListWorkingHours(ctx, "pro-1")
	if len(hours) != 1 || hours[0].Weekday != time.Monday || !hours[0].HasBreak() {
		t.Fatalf("hours = %+v", hours)
	}
	holidays, _ := store.ListHolidays(ctx, "pro-1")
	if len(holidays) != 1 || holidays[0].Kind != model.HolidayKindHoliday {
		t.Fatalf("holidays = %+v", holidays)
	}
	pol, err := store.GetReschedulePolicy(ctx, "pro-1")
	if err != nil || pol.MinimumNotice != 12*time.Hour || pol.MaxReschedules != 2 || pol.FarFutureDays != 60 || len(pol.Blackouts) != 1 {
		t.Fatalf("policy = %+v, %v", pol, err)
	}
}

func TestApplyRejectsInvalidEvents(t *testing.T) {
	a := NewApplier(storage.NewMemory(nil))
	cases := []struct {
		name      string
		eventType string
		payload   string
	}{
		{"bad json", ClientUpserted, `{`},
		{"unknown timezone", ProfessionalUpserted, `{"professional_id":"p","timezone":"Mars/Olympus"}`},
		{"zero duration", ServiceUpserted, `{"service_id":"s","professional_id":"p","duration_minutes":0}`},
		{"inverted hours", CalendarUpdated, `{"professional_id":"p","working_hours":[{"weekday":2,"is_working":true,"start_minute":600,"end_minute":540}]}`},
		{"break outside hours", CalendarUpdated, `{"professional_id":"p","working_hours":[{"weekday":2,"is_working":true,"start_minute":540,"end_minute":600,"break_start_minute":700,"break_end_minute":720}]}`},
		{"bad holiday kind", CalendarUpdated, `{"professional_id":"p","holidays":[{"date":"2026-01-01","kind":"party"}]}`},
		{"inverted blackout", PolicyUpdated, `{"professional_id":"p","blackouts":[{"start_date":"2026-02-02","end_date":"2026-02-01"}]}`},
		{"unknown type", "business.unknown.v1", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := a.Apply(context.Background(), tc.eventType, []byte(tc.payload))
			var invalid *InvalidEventError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidEventError, got %v", err)
			}
		})
	}
}
