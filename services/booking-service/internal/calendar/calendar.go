package calendar

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const DateLayout = "2006-01-02"

const (
	ReasonClosedWeekday   = "closed_weekday"
	ReasonCrossesMidnight = "crosses_midnight"
	ReasonOutsideHours    = "outside_hours"
	ReasonBreak           = "break"
	ReasonInvalidDuration = "invalid_duration"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// Calendar is the weekly working schedule of one professional plus dated overrides.
// Missing weekdays are closed.
type Calendar struct {
	Location  *time.Location
	Week      [7]model.WorkingHours
	Overrides map[string]model.Holiday
}

func New(loc *time.Location, hours []model.WorkingHours, holidays []model.Holiday) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	cal := Calendar{Location: loc, Overrides: make(map[string]model.Holiday, len(holidays))}
	for _, wh := range hours {
		if wh.Weekday < time.Sunday || wh.Weekday > time.Saturday {
			continue
		}
		cal.Week[wh.Weekday] = wh
	}
	for _, h := range holidays {
		cal.Overrides[h.Date] = h
	}
	return cal
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// LocalDate returns the professional-local calendar date of t.
func (c Calendar) LocalDate(t time.Time) string {
	return t.In(c.loc()).Format(DateLayout)
}

// DayStatus reports whether the local date containing t is a working day.
func (c Calendar) DayStatus(t time.Time) (bool, string) {
	local := t.In(c.loc())
	if h, ok := c.Overrides[local.Format(DateLayout)]; ok && !h.Open {
		kind := h.Kind
		if kind == "" {
			kind = model.HolidayKindHoliday
		}
		return false, string(kind)
	}
	if !c.Week[local.Weekday()].IsOpen {
		return false, ReasonClosedWeekday
	}
	return true, ""
}

// DayWindow returns the open/close interval of the local date containing t.
func (c Calendar) DayWindow(t time.Time) (Interval, bool) {
	if open, _ := c.DayStatus(t); !open {
		return Interval{}, false
	}
	local := t.In(c.loc())
	wh := c.Week[local.Weekday()]
	if wh.CloseMinute <= wh.OpenMinute {
		return Interval{}, false
	}
	return Interval{
		Start: c.atMinute(local, wh.OpenMinute),
		End:   c.atMinute(local, wh.CloseMinute),
	}, true
}

// Fits reports whether [start, start+duration) is bookable under the working schedule.
// Slots may run into the break but may not start inside it.
func (c Calendar) Fits(start time.Time, duration time.Duration) (bool, string) {
	if duration <= 0 {
		return false, ReasonInvalidDuration
	}
	local := start.In(c.loc())
	end := local.Add(duration)
	if end.After(c.StartOfDay(local).AddDate(0, 0, 1)) {
		return false, ReasonCrossesMidnight
	}
	if open, reason := c.DayStatus(local); !open {
		return false, reason
	}
	wh := c.Week[local.Weekday()]
	if local.Before(c.atMinute(local, wh.OpenMinute)) || end.After(c.atMinute(local, wh.CloseMinute)) {
		return false, ReasonOutsideHours
	}
	if wh.HasBreak() && !local.Before(c.atMinute(local, wh.BreakStartMinute)) && local.Before(c.atMinute(local, wh.BreakEndMinute)) {
		return false, ReasonBreak
	}
	return true, ""
}

// StartOfDay returns local midnight of the date containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.loc())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc())
}

func (c Calendar) atMinute(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minute, 0, 0, c.loc())
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
