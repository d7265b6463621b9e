package policy

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	CodeNoticePeriod   = "NOTICE_PERIOD"
	CodeMaxReschedules = "MAX_RESCHEDULES"
	CodeBlackout       = "BLACKOUT"
	CodePastTime       = "PAST_TIME"
	CodeInvalidStatus  = "INVALID_STATUS"
	CodeUnchanged      = "UNCHANGED"

	CodeShortNotice    = "SHORT_NOTICE"
	CodeFarFuture      = "FAR_FUTURE"
	CodeLastReschedule = "LAST_RESCHEDULE"
	CodeWeekendMove    = "WEEKEND_MOVE"
)

type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Input is everything a rule may look at. Location is the professional's timezone and
// decides which calendar date a requested instant falls on. A zero RequestedDuration keeps
// the appointment's current duration.
type Input struct {
	Appointment       model.Appointment
	Requested         time.Time
	RequestedDuration time.Duration
	Policy            model.ReschedulePolicy
	History           []model.RescheduleHistory
	Now               time.Time
	Location          *time.Location
}

// Rule inspects one concern and appends to the result. Rules never depend on each other.
type Rule func(in Input, res *Result)

var DefaultRules = []Rule{
	StatusRule,
	PastTimeRule,
	UnchangedRule,
	NoticeRule,
	FrequencyRule,
	BlackoutRule,
	FarFutureRule,
	WeekendMoveRule,
}

func Validate(appt model.Appointment, requested time.Time, p model.ReschedulePolicy, history []model.RescheduleHistory, now time.Time) Result {
	return ValidateInput(Input{Appointment: appt, Requested: requested, Policy: p, History: history, Now: now})
}

func ValidateInput(in Input, rules ...Rule) Result {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	if in.Location == nil {
		in.Location = time.UTC
	}
	res := Result{Errors: []Issue{}, Warnings: []Issue{}}
	for _, rule := range rules {
		rule(in, &res)
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

func (r *Result) fail(code, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warn(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
}

func StatusRule(in Input, res *Result) {
	if !in.Appointment.Status.Reschedulable() {
		res.fail(CodeInvalidStatus, "appointment with status %s cannot be rescheduled", in.Appointment.Status)
	}
}

func PastTimeRule(in Input, res *Result) {
	if !in.Requested.After(in.Now) {
		res.fail(CodePastTime, "requested time %s is not in the future", in.Requested.UTC().Format(time.RFC3339))
	}
}

func UnchangedRule(in Input, res *Result) {
	if !in.Requested.Equal(in.Appointment.StartTime) {
		return
	}
	if in.RequestedDuration == 0 || in.RequestedDuration == in.Appointment.Duration() {
		res.fail(CodeUnchanged, "requested time and duration equal the current ones")
	}
}

// NoticeRule requires the minimum notice both before the current start and before the new one.
func NoticeRule(in Input, res *Result) {
	notice := in.Policy.MinimumNotice
	if notice <= 0 {
		return
	}
	short := in.Requested.Sub(in.Now) < notice || in.Appointment.StartTime.Sub(in.Now) < notice
	if !short {
		return
	}
	if in.Policy.AllowSameDay {
		res.warn(CodeShortNotice, "change is within the %s notice period", notice)
		return
	}
	res.fail(CodeNoticePeriod, "reschedules require at least %s notice", notice)
}

func FrequencyRule(in Input, res *Result) {
	limit := in.Policy.MaxReschedules
	if limit <= 0 {
		return
	}
	done := model.ConfirmedReschedules(in.History, in.Appointment.ID)
	switch {
	case done >= limit:
		res.fail(CodeMaxReschedules, "appointment was already rescheduled %d of %d allowed times", done, limit)
	case done == limit-1:
		res.warn(CodeLastReschedule, "this is the last reschedule allowed for this appointment")
	}
}

func BlackoutRule(in Input, res *Result) {
	date := in.Requested.In(in.Location).Format(calendar.DateLayout)
	for _, b := range in.Policy.Blackouts {
		if b.Contains(date) {
			reason := b.Reason
			if reason == "" {
				reason = "blackout period"
			}
			res.fail(CodeBlackout, "%s falls in a blackout (%s)", date, reason)
			return
		}
	}
}

func FarFutureRule(in Input, res *Result) {
	days := in.Policy.FarFutureDays
	if days <= 0 {
		return
	}
	if in.Requested.Sub(in.Now) > time.Duration(days)*24*time.Hour {
		res.warn(CodeFarFuture, "requested time is more than %d days ahead", days)
	}
}

func WeekendMoveRule(in Input, res *Result) {
	from := in.Appointment.StartTime.In(in.Location)
	to := in.Requested.In(in.Location)
	if !calendar.IsWeekend(from) && calendar.IsWeekend(to) {
		res.warn(CodeWeekendMove, "moving from a weekday to a weekend slot")
	}
}
