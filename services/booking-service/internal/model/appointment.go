package model

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "SCHEDULED"
	StatusConfirmed  AppointmentStatus = "CONFIRMED"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
	StatusNoShow     AppointmentStatus = "NO_SHOW"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	switch st {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) Blocking() bool {
	return s != StatusCancelled
}

// Reschedulable is true for appointments that have not started and are not cancelled.
func (s AppointmentStatus) Reschedulable() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

type Appointment struct {
	ID              string
	ProfessionalID  string
	ClientID        string
	StaffID         string
	ServiceID       string
	ServiceName     string
	PriceCents      int64
	DurationMinutes int
	StartTime       time.Time
	Status          AppointmentStatus
	PaymentStatus   string
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

// Transition moves the appointment to next, rejecting moves the state machine does not allow.
func (a *Appointment) Transition(next AppointmentStatus, at time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = at
	a.Version++
	if next == StatusCancelled {
		cancelledAt := at
		a.CancelledAt = &cancelledAt
	}
	return nil
}
