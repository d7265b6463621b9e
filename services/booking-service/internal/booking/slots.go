package booking

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
)

const DefaultSlotStep = 15 * time.Minute

type SlotsRequest struct {
	ProfessionalID  string
	ServiceID       string
	Date            string // professional-local YYYY-MM-DD
	DurationMinutes int    // 0 uses the service duration
	StepMinutes     int
}

// DaySlots lists the bookable starts on one local date, aligned to the step from opening time.
func (s *Service) DaySlots(ctx context.Context, req SlotsRequest) ([]availability.Interval, error) {
	req.ProfessionalID = strings.TrimSpace(req.ProfessionalID)
	if req.ProfessionalID == "" {
		return nil, invalid("professional_id", "REQUIRED", "professional_id is required")
	}

	minutes := req.DurationMinutes
	if req.ServiceID != "" && minutes == 0 {
		svc, err := s.store.GetService(ctx, req.ServiceID)
		if err != nil {
			return nil, notFound(err, "service", req.ServiceID)
		}
		minutes = svc.DurationMinutes
	}
	if minutes <= 0 {
		return nil, invalid("duration_minutes", "INVALID_DURATION", "duration must be positive")
	}
	step := DefaultSlotStep
	if req.StepMinutes > 0 {
		step = time.Duration(req.StepMinutes) * time.Minute
	}
	duration := time.Duration(minutes) * time.Minute

	cal, err := loadCalendar(ctx, s.store, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(calendar.DateLayout, req.Date, cal.Location)
	if err != nil {
		return nil, invalid("date", "INVALID_DATE", "date must be YYYY-MM-DD")
	}
	window, ok := cal.DayWindow(day)
	if !ok {
		return []availability.Interval{}, nil
	}

	pol, err := s.policies.ReschedulePolicy(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	buffer := pol.Buffer()
	booked, err := s.store.ListBlocking(ctx, req.ProfessionalID, window.Start.Add(-buffer), window.End.Add(buffer))
	if err != nil {
		return nil, err
	}

	starts := availability.AvailableSlots(window.Start, window.End, duration, step, availability.BusyIntervals(booked, buffer), s.now())
	out := make([]availability.Interval, 0, len(starts))
	for _, start := range starts {
		if fits, _ := cal.Fits(start, duration); fits {
			out = append(out, availability.Interval{Start: start, End: start.Add(duration)})
		}
	}
	return out, nil
}
