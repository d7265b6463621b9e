package availability

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Interval = calendar.Interval

// AvailableSlots returns slot starts within [windowStart, windowEnd) where a booking of
// length duration avoids every busy interval and does not start before now.
// Callers pass times in the professional's location so steps stay aligned to local time.
func AvailableSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) || windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// BusyIntervals converts blocking appointments into intervals widened by buffer on both sides.
func BusyIntervals(appts []model.Appointment, buffer time.Duration) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if !a.Status.Blocking() {
			continue
		}
		out = append(out, Interval{Start: a.StartTime.Add(-buffer), End: a.EndTime().Add(buffer)})
	}
	return out
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// overlaps treats both intervals as half-open.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
