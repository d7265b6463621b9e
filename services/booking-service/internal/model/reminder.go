package model

import (
	"fmt"
	"strings"
	"time"
)

type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
)

func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	switch ch {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS:
		return ch, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

type JobStatus string

const (
	JobPending  JobStatus = "PENDING"
	JobSent     JobStatus = "SENT"
	JobFailed   JobStatus = "FAILED"
	JobCanceled JobStatus = "CANCELED"
)

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s != JobPending {
		return false
	}
	switch next {
	case JobSent, JobFailed, JobCanceled:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobSent || s == JobFailed || s == JobCanceled
}

type ReminderJob struct {
	ID             string
	IdempotencyKey string
	AppointmentID  string
	ProfessionalID string
	Channel        Channel
	Recipient      string
	OffsetHours    int
	FireAt         time.Time
	Status         JobStatus
	Attempts       int
	MaxAttempts    int
	NextAttemptAt  time.Time
	SentAt         *time.Time
	LastError      string
	Traceparent    string
	Tracestate     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func ReminderIdempotencyKey(appointmentID string, fireAt time.Time, channel Channel) string {
	return appointmentID + "|" + fireAt.UTC().Format(time.RFC3339) + "|" + string(channel)
}

type ReminderConfig struct {
	ProfessionalID string
	Enabled        bool
	OffsetsHours   []int
	Channels       []Channel
	Template       string
}

func DefaultReminderConfig(professionalID string) ReminderConfig {
	return ReminderConfig{
		ProfessionalID: professionalID,
		Enabled:        true,
		OffsetsHours:   []int{24, 2},
		Channels:       []Channel{ChannelWhatsApp},
	}
}
