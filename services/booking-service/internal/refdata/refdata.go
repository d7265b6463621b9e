package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

const (
	ProfessionalUpserted = "business.professional.upserted.v1"
	ClientUpserted       = "business.client.upserted.v1"
	ServiceUpserted      = "business.service.upserted.v1"
	CalendarUpdated      = "business.calendar.updated.v1"
	PolicyUpdated        = "business.policy.updated.v1"
)

// Topics lists every event type the applier understands.
var Topics = []string{ProfessionalUpserted, ClientUpserted, ServiceUpserted, CalendarUpdated, PolicyUpdated}

// InvalidEventError marks a payload that will never apply. Consumers drop it instead of retrying.
type InvalidEventError struct {
	EventType string
	Reason    string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.EventType, e.Reason)
}

// Applier writes reference data owned by the business service into the booking store.
type Applier struct {
	store storage.Store
}

func NewApplier(store storage.Store) *Applier {
	return &Applier{store: store}
}

type professionalEvent struct {
	ProfessionalID string `json:"professional_id"`
	Name           string `json:"name"`
	Timezone       string `json:"timezone"`
}

type clientEvent struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

type serviceEvent struct {
	ServiceID       string `json:"service_id"`
	ProfessionalID  string `json:"professional_id"`
	Name            string `json:"name"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

type workingHoursItem struct {
	Weekday          int  `json:"weekday"`
	IsWorking        bool `json:"is_working"`
	StartMinute      int  `json:"start_minute"`
	EndMinute        int  `json:"end_minute"`
	BreakStartMinute int  `json:"break_start_minute"`
	BreakEndMinute   int  `json:"break_end_minute"`
}

type holidayItem struct {
	Date        string `json:"date"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Open        bool   `json:"open"`
}

type calendarEvent struct {
	ProfessionalID string             `json:"professional_id"`
	WorkingHours   []workingHoursItem `json:"working_hours"`
	Holidays       []holidayItem      `json:"holidays"`
}

type policyEvent struct {
	ProfessionalID     string                `json:"professional_id"`
	MinimumNoticeHours int                   `json:"minimum_notice_hours"`
	MaxReschedules     int                   `json:"max_reschedules"`
	Blackouts          []model.BlackoutRange `json:"blackouts"`
	AllowSameDay       bool                  `json:"allow_same_day"`
	BufferMinutes      int                   `json:"buffer_minutes"`
	FarFutureDays      int                   `json:"far_future_days"`
}

// Apply decodes payload according to eventType and upserts the result.
func (a *Applier) Apply(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case ProfessionalUpserted:
		var evt professionalEvent
		if err := decode(eventType, payload, &evt); err != nil {
			return err
		}
		p, err := professionalFrom(evt)
		if err != nil {
			return err
		}
		return a.store.InTx(ctx, func(tx storage.Tx) error { return tx.UpsertProfessional(ctx, p) })

	case ClientUpserted:
		var evt clientEvent
		if err := decode(eventType, payload, &evt); err != nil {
			return err
		}
		if strings.TrimSpace(evt.ClientID) == "" {
			return &InvalidEventError{EventType: eventType, Reason: "client_id is required"}
		}
		c := model.Client{
			ID:       strings.TrimSpace(evt.ClientID),
			Name:     strings.TrimSpace(evt.Name),
			Phone:    strings.TrimSpace(evt.Phone),
			Email:    strings.TrimSpace(evt.Email),
			WhatsApp: strings.TrimSpace(evt.WhatsApp),
		}
		return a.store.InTx(ctx, func(tx storage.Tx) error { return tx.UpsertClient(ctx, c) })

	case ServiceUpserted:
		var evt serviceEvent
		if err := decode(eventType, payload, &evt); err != nil {
			return err
		}
		switch {
		case evt.ServiceID == "" || evt.ProfessionalID == "":
			return &InvalidEventError{EventType: eventType, Reason: "service_id and professional_id are required"}
		case evt.DurationMinutes <= 0 || evt.DurationMinutes > 24*60:
			return &InvalidEventError{EventType: eventType, Reason: "duration_minutes must be within (0, 1440]"}
		case evt.PriceCents < 0:
			return &InvalidEventError{EventType: eventType, Reason: "price_cents must not be negative"}
		}
		svc := model.Service{
			ID:              evt.ServiceID,
			ProfessionalID:  evt.ProfessionalID,
			Name:            strings.TrimSpace(evt.Name),
			PriceCents:      evt.PriceCents,
			DurationMinutes: evt.DurationMinutes,
		}
		return a.store.InTx(ctx, func(tx storage.Tx) error { return tx.UpsertService(ctx, svc) })

	case CalendarUpdated:
		var evt calendarEvent
		if err := decode(eventType, payload, &evt); err != nil {
			return err
		}
		hours, holidays, err := calendarFrom(evt)
		if err != nil {
			return err
		}
		return a.store.WithProfessional(ctx, evt.ProfessionalID, func(tx storage.Tx) error {
			if err := tx.ReplaceWorkingHours(ctx, evt.ProfessionalID, hours); err != nil {
				return err
			}
			return tx.ReplaceHolidays(ctx, evt.ProfessionalID, holidays)
		})

	case PolicyUpdated:
		var evt policyEvent
		if err := decode(eventType, payload, &evt); err != nil {
			return err
		}
		p, err := policyFrom(evt)
		if err != nil {
			return err
		}
		return a.store.WithProfessional(ctx, p.ProfessionalID, func(tx storage.Tx) error { return tx.PutReschedulePolicy(ctx, p) })
	}
	return &InvalidEventError{EventType: eventType, Reason: "unknown event type"}
}

func decode(eventType string, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &InvalidEventError{EventType: eventType, Reason: err.Error()}
	}
	return nil
}

func professionalFrom(evt professionalEvent) (model.Professional, error) {
	id := strings.TrimSpace(evt.ProfessionalID)
	if id == "" {
		return model.Professional{}, &InvalidEventError{EventType: ProfessionalUpserted, Reason: "professional_id is required"}
	}
	tz := strings.TrimSpace(evt.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return model.Professional{}, &InvalidEventError{EventType: ProfessionalUpserted, Reason: "unknown timezone " + tz}
	}
	return model.Professional{ID: id, Name: strings.TrimSpace(evt.Name), Timezone: tz}, nil
}

func calendarFrom(evt calendarEvent) ([]model.WorkingHours, []model.Holiday, error) {
	bad := func(format string, args ...any) error {
		return &InvalidEventError{EventType: CalendarUpdated, Reason: fmt.Sprintf(format, args...)}
	}
	if evt.ProfessionalID == "" {
		return nil, nil, bad("professional_id is required")
	}

	seen := map[int]bool{}
	hours := make([]model.WorkingHours, 0, len(evt.WorkingHours))
	for _, wh := range evt.WorkingHours {
		if wh.Weekday < 0 || wh.Weekday > 6 {
			return nil, nil, bad("weekday %d out of range", wh.Weekday)
		}
		if seen[wh.Weekday] {
			return nil, nil, bad("weekday %d listed twice", wh.Weekday)
		}
		seen[wh.Weekday] = true
		if wh.IsWorking {
			if wh.StartMinute < 0 || wh.EndMinute > 24*60 || wh.EndMinute <= wh.StartMinute {
				return nil, nil, bad("weekday %d: invalid hours %d-%d", wh.Weekday, wh.StartMinute, wh.EndMinute)
			}
			if wh.BreakEndMinute > wh.BreakStartMinute && (wh.BreakStartMinute < wh.StartMinute || wh.BreakEndMinute > wh.EndMinute) {
				return nil, nil, bad("weekday %d: break outside working hours", wh.Weekday)
			}
		}
		hours = append(hours, model.WorkingHours{
			ProfessionalID:   evt.ProfessionalID,
			Weekday:          time.Weekday(wh.Weekday),
			IsOpen:           wh.IsWorking,
			OpenMinute:       wh.StartMinute,
			CloseMinute:      wh.EndMinute,
			BreakStartMinute: wh.BreakStartMinute,
			BreakEndMinute:   wh.BreakEndMinute,
		})
	}

	holidays := make([]model.Holiday, 0, len(evt.Holidays))
	for _, h := range evt.Holidays {
		if _, err := time.Parse(calendar.DateLayout, h.Date); err != nil {
			return nil, nil, bad("holiday date %q is not YYYY-MM-DD", h.Date)
		}
		kind := model.HolidayKind(strings.ToLower(strings.TrimSpace(h.Kind)))
		if kind == "" {
			kind = model.HolidayKindHoliday
		}
		if !kind.Valid() {
			return nil, nil, bad("unknown holiday kind %q", h.Kind)
		}
		holidays = append(holidays, model.Holiday{
			ProfessionalID: evt.ProfessionalID,
			Date:           h.Date,
			Kind:           kind,
			Description:    strings.TrimSpace(h.Description),
			Open:           h.Open,
		})
	}
	return hours, holidays, nil
}

func policyFrom(evt policyEvent) (model.ReschedulePolicy, error) {
	bad := func(reason string) error {
		return &InvalidEventError{EventType: PolicyUpdated, Reason: reason}
	}
	switch {
	case evt.ProfessionalID == "":
		return model.ReschedulePolicy{}, bad("professional_id is required")
	case evt.MinimumNoticeHours < 0:
		return model.ReschedulePolicy{}, bad("minimum_notice_hours must not be negative")
	case evt.BufferMinutes < 0:
		return model.ReschedulePolicy{}, bad("buffer_minutes must not be negative")
	}
	for _, b := range evt.Blackouts {
		start, err1 := time.Parse(calendar.DateLayout, b.StartDate)
		end, err2 := time.Parse(calendar.DateLayout, b.EndDate)
		if err1 != nil || err2 != nil || end.Before(start) {
			return model.ReschedulePolicy{}, bad(fmt.Sprintf("invalid blackout %s..%s", b.StartDate, b.EndDate))
		}
	}
	p := model.ReschedulePolicy{
		ProfessionalID: evt.ProfessionalID,
		MinimumNotice:  time.Duration(evt.MinimumNoticeHours) * time.Hour,
		MaxReschedules: evt.MaxReschedules,
		Blackouts:      evt.Blackouts,
		AllowSameDay:   evt.AllowSameDay,
		BufferMinutes:  evt.BufferMinutes,
		FarFutureDays:  evt.FarFutureDays,
	}
	if p.FarFutureDays <= 0 {
		p.FarFutureDays = model.DefaultReschedulePolicy().FarFutureDays
	}
	return p, nil
}
