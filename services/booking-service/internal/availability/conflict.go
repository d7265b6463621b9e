package availability

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// BusyReader lists a professional's non-cancelled appointments that intersect [from, to).
type BusyReader interface {
	ListBlocking(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error)
}

// BufferSource resolves the conflict buffer configured for a professional.
type BufferSource interface {
	Buffer(ctx context.Context, professionalID string) (time.Duration, error)
}

type Detector struct {
	reader  BusyReader
	buffers BufferSource
}

func NewDetector(reader BusyReader, buffers BufferSource) *Detector {
	return &Detector{reader: reader, buffers: buffers}
}

func (d *Detector) HasConflict(ctx context.Context, professionalID string, start time.Time, duration time.Duration, excludeAppointmentID string) (bool, error) {
	conflicts, err := d.Conflicts(ctx, professionalID, start, duration, excludeAppointmentID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Conflicts returns the appointments that overlap the candidate window widened by the buffer.
func (d *Detector) Conflicts(ctx context.Context, professionalID string, start time.Time, duration time.Duration, excludeAppointmentID string) ([]model.Appointment, error) {
	buffer, err := d.buffer(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	end := start.Add(duration)
	busy, err := d.reader.ListBlocking(ctx, professionalID, start.Add(-buffer), end.Add(buffer))
	if err != nil {
		return nil, err
	}
	return Overlapping(busy, start, end, buffer, excludeAppointmentID), nil
}

func (d *Detector) buffer(ctx context.Context, professionalID string) (time.Duration, error) {
	if d.buffers == nil {
		return 0, nil
	}
	return d.buffers.Buffer(ctx, professionalID)
}

// Overlapping filters busy down to the blocking appointments that intersect
// [start-buffer, end+buffer), skipping excludeID.
func Overlapping(busy []model.Appointment, start, end time.Time, buffer time.Duration, excludeID string) []model.Appointment {
	if buffer < 0 {
		buffer = 0
	}
	candStart, candEnd := start.Add(-buffer), end.Add(buffer)
	var out []model.Appointment
	for _, a := range busy {
		if a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		if overlaps(candStart, candEnd, a.StartTime, a.EndTime()) {
			out = append(out, a)
		}
	}
	return out
}
