package model

import "time"

type Professional struct {
	ID       string
	Name     string
	Timezone string
}

// Location resolves the professional's IANA timezone, falling back to UTC.
func (p Professional) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Client struct {
	ID       string
	Name     string
	Phone    string
	Email    string
	WhatsApp string
}

// Recipient returns the address used for channel, or "" when the client has none.
func (c Client) Recipient(channel Channel) string {
	switch channel {
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Phone
	case ChannelWhatsApp:
		if c.WhatsApp != "" {
			return c.WhatsApp
		}
		return c.Phone
	}
	return ""
}

type Service struct {
	ID              string
	ProfessionalID  string
	Name            string
	PriceCents      int64
	DurationMinutes int
}

// WorkingHours is one weekday of a professional's weekly availability. Minutes count
// from local midnight; CloseMinute may be 1440.
type WorkingHours struct {
	ProfessionalID   string
	Weekday          time.Weekday
	IsOpen           bool
	OpenMinute       int
	CloseMinute      int
	BreakStartMinute int
	BreakEndMinute   int
}

func (wh WorkingHours) HasBreak() bool {
	return wh.BreakEndMinute > wh.BreakStartMinute
}

type HolidayKind string

const (
	HolidayKindHoliday  HolidayKind = "holiday"
	HolidayKindVacation HolidayKind = "vacation"
	HolidayKindEvent    HolidayKind = "event"
)

func (k HolidayKind) Valid() bool {
	switch k {
	case HolidayKindHoliday, HolidayKindVacation, HolidayKindEvent:
		return true
	}
	return false
}

// Holiday closes a local calendar date unless Open explicitly re-opens it.
type Holiday struct {
	ProfessionalID string
	Date           string // YYYY-MM-DD, professional-local
	Kind           HolidayKind
	Description    string
	Open           bool
}
