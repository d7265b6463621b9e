package booking

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// StoreCalendars builds a professional's calendar from stored working hours and holidays.
type StoreCalendars struct {
	Reader storage.Reader
}

func (s StoreCalendars) Calendar(ctx context.Context, professionalID string) (calendar.Calendar, error) {
	return loadCalendar(ctx, s.Reader, professionalID)
}

func loadCalendar(ctx context.Context, r storage.Reader, professionalID string) (calendar.Calendar, error) {
	loc := time.UTC
	pro, err := r.GetProfessional(ctx, professionalID)
	switch {
	case err == nil:
		loc = pro.Location()
	case !errors.Is(err, storage.ErrNotFound):
		return calendar.Calendar{}, err
	}
	hours, err := r.ListWorkingHours(ctx, professionalID)
	if err != nil {
		return calendar.Calendar{}, err
	}
	holidays, err := r.ListHolidays(ctx, professionalID)
	if err != nil {
		return calendar.Calendar{}, err
	}
	return calendar.New(loc, hours, holidays), nil
}
