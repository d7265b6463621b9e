package model

import "time"

type BlackoutRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD inclusive
	EndDate   string `json:"end_date"`   // YYYY-MM-DD inclusive
	Reason    string `json:"reason,omitempty"`
}

// Contains compares local dates lexically, which is valid for the zero-padded ISO layout.
func (b BlackoutRange) Contains(date string) bool {
	return date >= b.StartDate && date <= b.EndDate
}

type ReschedulePolicy struct {
	ProfessionalID string
	MinimumNotice  time.Duration
	MaxReschedules int
	Blackouts      []BlackoutRange
	AllowSameDay   bool
	BufferMinutes  int
	FarFutureDays  int
}

func DefaultReschedulePolicy() ReschedulePolicy {
	return ReschedulePolicy{
		MinimumNotice:  24 * time.Hour,
		MaxReschedules: 3,
		FarFutureDays:  60,
	}
}

func (p ReschedulePolicy) Buffer() time.Duration {
	if p.BufferMinutes <= 0 {
		return 0
	}
	return time.Duration(p.BufferMinutes) * time.Minute
}

type Initiator string

const (
	InitiatorClient       Initiator = "client"
	InitiatorProfessional Initiator = "professional"
	InitiatorStaff        Initiator = "staff"
	InitiatorSystem       Initiator = "system"
)

func (i Initiator) Valid() bool {
	switch i {
	case InitiatorClient, InitiatorProfessional, InitiatorStaff, InitiatorSystem:
		return true
	}
	return false
}

type RescheduleOutcome string

const (
	OutcomeConfirmed RescheduleOutcome = "confirmed"
	OutcomeDenied    RescheduleOutcome = "denied"
	OutcomeConflict  RescheduleOutcome = "conflict"
)

type RescheduleHistory struct {
	ID             string
	AppointmentID  string
	ProfessionalID string
	OriginalStart  time.Time
	RequestedStart time.Time
	Reason         string
	InitiatedBy    Initiator
	Outcome        RescheduleOutcome
	Detail         string
	CreatedAt      time.Time
}

// ConfirmedReschedules counts the entries that actually moved appointmentID.
func ConfirmedReschedules(history []RescheduleHistory, appointmentID string) int {
	n := 0
	for _, h := range history {
		if h.AppointmentID == appointmentID && h.Outcome == OutcomeConfirmed {
			n++
		}
	}
	return n
}
