package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/refdata"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
)

type appointmentItem struct {
	AppointmentID   string `json:"appointment_id"`
	ProfessionalID  string `json:"professional_id"`
	ClientID        string `json:"client_id"`
	StaffID         string `json:"staff_id,omitempty"`
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Status          string `json:"status"`
	CancelledAt     string `json:"cancelled_at,omitempty"`
	CancelReason    string `json:"cancel_reason,omitempty"`
	CreatedAt       string `json:"created_at"`
	Version         int    `json:"version"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

type conflictItem struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
}

type reasonItem struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error          string         `json:"error"`
	Reasons        []reasonItem   `json:"reasons,omitempty"`
	Conflicts      []conflictItem `json:"conflicts,omitempty"`
	SuggestedTimes []slotItem     `json:"suggested_times,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID:   a.ID,
		ProfessionalID:  a.ProfessionalID,
		ClientID:        a.ClientID,
		StaffID:         a.StaffID,
		ServiceID:       a.ServiceID,
		ServiceName:     a.ServiceName,
		PriceCents:      a.PriceCents,
		DurationMinutes: a.DurationMinutes,
		StartTime:       formatTime(a.StartTime),
		EndTime:         formatTime(a.EndTime()),
		Status:          string(a.Status),
		CancelReason:    a.CancelReason,
		CreatedAt:       formatTime(a.CreatedAt),
		Version:         a.Version,
	}
	if a.CancelledAt != nil {
		item.CancelledAt = formatTime(*a.CancelledAt)
	}
	return item
}

func toAppointmentItems(appts []model.Appointment) []appointmentItem {
	out := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentItem(a))
	}
	return out
}

func toSlotItems(options []availability.Option) []slotItem {
	out := make([]slotItem, 0, len(options))
	for _, o := range options {
		out = append(out, slotItem{StartTime: formatTime(o.Start), EndTime: formatTime(o.End), Available: o.Available, Reason: o.Reason})
	}
	return out
}

func toConflictItems(conflicts []booking.ConflictDetail) []conflictItem {
	out := make([]conflictItem, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, conflictItem{AppointmentID: c.AppointmentID, StartTime: formatTime(c.Start), EndTime: formatTime(c.End), Status: string(c.Status)})
	}
	return out
}

func toReasonItems(reasons []booking.Reason) []reasonItem {
	out := make([]reasonItem, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, reasonItem{Field: r.Field, Code: r.Code, Message: r.Message})
	}
	return out
}

// writeServiceError maps domain errors to status codes. Anything unrecognized is a 500
// and is logged, since the caller only sees a generic message.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		notFound   *booking.NotFoundError
		conflict   *booking.ConflictError
		validation *booking.ValidationError
		badConfig  *reminders.InvalidConfigError
		badEvent   *refdata.InvalidEventError
	)
	switch {
	case errors.As(err, &notFound):
		httpx.WriteError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		httpx.WriteJSON(w, http.StatusConflict, errorResponse{
			Error:          conflict.Error(),
			Conflicts:      toConflictItems(conflict.Conflicts),
			SuggestedTimes: toSlotItems(conflict.Suggestions),
		})
	case errors.As(err, &validation):
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   validation.Error(),
			Reasons: toReasonItems(validation.Reasons),
		})
	case errors.As(err, &badConfig):
		reasons := make([]reasonItem, 0, len(badConfig.Reasons))
		for _, r := range badConfig.Reasons {
			reasons = append(reasons, reasonItem{Code: "INVALID_CONFIG", Message: r})
		}
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: badConfig.Error(), Reasons: reasons})
	case errors.As(err, &badEvent):
		httpx.WriteError(w, http.StatusUnprocessableEntity, badEvent.Error())
	default:
		logger.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
