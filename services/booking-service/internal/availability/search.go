package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	DefaultGranularity = 30 * time.Minute
	DefaultHorizon     = 7 * 24 * time.Hour
	MinGranularity     = 5 * time.Minute
	MaxHorizon         = 31 * 24 * time.Hour
)

const (
	ReasonPast     = "past"
	ReasonConflict = "conflict"
)

var ErrInvalidDuration = errors.New("duration must be positive")

type Option struct {
	Start     time.Time
	End       time.Time
	Available bool
	Reason    string
}

type Preferences struct {
	Granularity          time.Duration
	Horizon              time.Duration
	PreferSameWeek       bool
	AvoidWeekends        bool
	ExcludeAppointmentID string
}

func (p Preferences) normalized() Preferences {
	if p.Granularity <= 0 {
		p.Granularity = DefaultGranularity
	}
	if p.Granularity < MinGranularity {
		p.Granularity = MinGranularity
	}
	p.Granularity = p.Granularity.Truncate(time.Minute)
	if p.Horizon <= 0 {
		p.Horizon = DefaultHorizon
	}
	if p.Horizon > MaxHorizon {
		p.Horizon = MaxHorizon
	}
	return p
}

type CalendarSource interface {
	Calendar(ctx context.Context, professionalID string) (calendar.Calendar, error)
}

// Searcher ranks candidate slots around an instant. It only reads, so calls may run in parallel.
type Searcher struct {
	reader    BusyReader
	calendars CalendarSource
	buffers   BufferSource
	now       func() time.Time
}

func NewSearcher(reader BusyReader, calendars CalendarSource, buffers BufferSource, now func() time.Time) *Searcher {
	if now == nil {
		now = time.Now
	}
	return &Searcher{reader: reader, calendars: calendars, buffers: buffers, now: now}
}

// FindOptions returns every grid candidate in the horizon, tagged available or not, ordered by
// distance from around. Weekend candidates sort last when AvoidWeekends is set.
func (s *Searcher) FindOptions(ctx context.Context, professionalID string, duration time.Duration, around time.Time, prefs Preferences) ([]Option, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	prefs = prefs.normalized()

	cal, err := s.calendars.Calendar(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	var buffer time.Duration
	if s.buffers != nil {
		if buffer, err = s.buffers.Buffer(ctx, professionalID); err != nil {
			return nil, err
		}
	}

	from, to := around.Add(-prefs.Horizon), around.Add(prefs.Horizon)
	if prefs.PreferSameWeek {
		weekStart, weekEnd := week(cal, around)
		if weekStart.After(from) {
			from = weekStart
		}
		if weekEnd.Before(to) {
			to = weekEnd.Add(-time.Minute)
		}
	}

	busy, err := s.reader.ListBlocking(ctx, professionalID, from.Add(-buffer), to.Add(duration+buffer))
	if err != nil {
		return nil, err
	}

	now := s.now()
	step := int(prefs.Granularity / time.Minute)
	var options []Option
	// Wall times skipped by a DST jump normalise onto existing instants.
	seen := map[int64]struct{}{}
	for day := cal.StartOfDay(from); !day.After(to); day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location()) {
		for minute := 0; minute < 24*60; minute += step {
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, minute, 0, 0, day.Location())
			if start.Before(from) || start.After(to) {
				continue
			}
			if _, dup := seen[start.Unix()]; dup {
				continue
			}
			seen[start.Unix()] = struct{}{}
			options = append(options, s.evaluate(cal, busy, start, duration, buffer, now, prefs.ExcludeAppointmentID))
		}
	}

	sort.SliceStable(options, func(i, j int) bool {
		a, b := options[i], options[j]
		if prefs.AvoidWeekends {
			aw, bw := calendar.IsWeekend(a.Start), calendar.IsWeekend(b.Start)
			if aw != bw {
				return !aw
			}
		}
		da, db := absDuration(a.Start.Sub(around)), absDuration(b.Start.Sub(around))
		if da != db {
			return da < db
		}
		return a.Start.Before(b.Start)
	})
	return options, nil
}

func (s *Searcher) evaluate(cal calendar.Calendar, busy []model.Appointment, start time.Time, duration, buffer time.Duration, now time.Time, excludeID string) Option {
	opt := Option{Start: start, End: start.Add(duration)}
	if ok, reason := cal.Fits(start, duration); !ok {
		opt.Reason = reason
		return opt
	}
	if !start.After(now) {
		opt.Reason = ReasonPast
		return opt
	}
	if len(Overlapping(busy, opt.Start, opt.End, buffer, excludeID)) > 0 {
		opt.Reason = ReasonConflict
		return opt
	}
	opt.Available = true
	return opt
}

// Available returns up to limit available options, keeping their order. limit <= 0 means all.
func Available(options []Option, limit int) []Option {
	var out []Option
	for _, o := range options {
		if !o.Available {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// week returns the local Monday 00:00 starting the week that contains t, and the following Monday.
func week(cal calendar.Calendar, t time.Time) (time.Time, time.Time) {
	day := cal.StartOfDay(t)
	back := (int(day.Weekday()) + 6) % 7
	start := time.Date(day.Year(), day.Month(), day.Day()-back, 0, 0, 0, 0, day.Location())
	return start, time.Date(start.Year(), start.Month(), start.Day()+7, 0, 0, 0, 0, start.Location())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
