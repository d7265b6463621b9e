package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/policy"
)

const defaultListLimit = 200

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	ProfessionalID  string `json:"professional_id"`
	ClientID        string `json:"client_id"`
	ServiceID       string `json:"service_id"`
	StaffID         string `json:"staff_id"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type appointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type rescheduleRequest struct {
	AppointmentID   string `json:"appointment_id"`
	NewStartTime    string `json:"new_start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
	InitiatedBy     string `json:"initiated_by"`
}

type rescheduleResponse struct {
	Success            bool             `json:"success"`
	Appointment        *appointmentItem `json:"appointment,omitempty"`
	Conflicts          []conflictItem   `json:"conflicts"`
	SuggestedTimes     []slotItem       `json:"suggested_times"`
	Validation         policy.Result    `json:"validation"`
	Error              string           `json:"error,omitempty"`
	RemindersCancelled int              `json:"reminders_cancelled"`
	RemindersCreated   int              `json:"reminders_created"`
}

type rescheduleOptionsResponse struct {
	AppointmentID   string     `json:"appointment_id"`
	Available       []slotItem `json:"available"`
	Unavailable     []slotItem `json:"unavailable"`
	RescheduleCount int        `json:"reschedule_count"`
	MaxReschedules  int        `json:"max_reschedules"`
	NoticeHours     float64    `json:"minimum_notice_hours"`
}

type historyItem struct {
	HistoryID      string `json:"history_id"`
	OriginalStart  string `json:"original_start_time"`
	RequestedStart string `json:"requested_start_time"`
	Reason         string `json:"reason,omitempty"`
	InitiatedBy    string `json:"initiated_by"`
	Outcome        string `json:"outcome"`
	Detail         string `json:"detail,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// Appointments serves POST (create) and GET (list) on the collection path.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid start_time")
		return
	}

	appt, err := h.svc.CreateAppointment(r.Context(), booking.CreateRequest{
		ProfessionalID:  strings.TrimSpace(req.ProfessionalID),
		ClientID:        strings.TrimSpace(req.ClientID),
		ServiceID:       strings.TrimSpace(req.ServiceID),
		StaffID:         strings.TrimSpace(req.StaffID),
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	professionalID := strings.TrimSpace(r.Header.Get("X-Professional-Id"))
	if professionalID == "" {
		professionalID = strings.TrimSpace(r.URL.Query().Get("professional_id"))
	}
	if professionalID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "professional_id required")
		return
	}
	from, ok := optionalTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := optionalTime(w, r, "to")
	if !ok {
		return
	}
	limit, ok := optionalInt(w, r, "limit", defaultListLimit)
	if !ok {
		return
	}

	appts, err := h.svc.List(r.Context(), professionalID, from, to, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": toAppointmentItems(appts)})
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAppointmentRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Confirm(r.Context(), req.AppointmentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAppointmentRequest(w, r)
	if !ok {
		return
	}
	appt, err := h.svc.Cancel(r.Context(), req.AppointmentID, req.Reason)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	newStart, err := time.Parse(time.RFC3339, strings.TrimSpace(req.NewStartTime))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid new_start_time")
		return
	}
	initiatedBy := model.InitiatorClient
	if v := strings.TrimSpace(req.InitiatedBy); v != "" {
		initiatedBy = model.Initiator(strings.ToLower(v))
	}

	res, err := h.svc.Reschedule(r.Context(), booking.RescheduleRequest{
		AppointmentID:   strings.TrimSpace(req.AppointmentID),
		NewStart:        newStart,
		DurationMinutes: req.DurationMinutes,
		Reason:          strings.TrimSpace(req.Reason),
		InitiatedBy:     initiatedBy,
	})

	status := http.StatusOK
	if err != nil {
		var (
			conflict   *booking.ConflictError
			validation *booking.ValidationError
		)
		switch {
		case errors.As(err, &conflict):
			status = http.StatusConflict
		case errors.As(err, &validation):
			status = http.StatusUnprocessableEntity
		default:
			writeServiceError(w, h.logger, err)
			return
		}
	}

	resp := rescheduleResponse{
		Success:            res.Success,
		Conflicts:          toConflictItems(res.Conflicts),
		SuggestedTimes:     toSlotItems(res.SuggestedTimes),
		Validation:         res.Validation,
		Error:              res.Error,
		RemindersCancelled: res.RemindersCancelled,
		RemindersCreated:   res.RemindersCreated,
	}
	if res.Appointment.ID != "" {
		item := toAppointmentItem(res.Appointment)
		resp.Appointment = &item
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *BookingHandler) RescheduleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	appointmentID := strings.TrimSpace(q.Get("appointment_id"))
	if appointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id required")
		return
	}
	granularity, ok := optionalInt(w, r, "granularity_minutes", 0)
	if !ok {
		return
	}
	horizon, ok := optionalInt(w, r, "horizon_days", 0)
	if !ok {
		return
	}

	opts, err := h.svc.FindRescheduleOptions(r.Context(), appointmentID, availability.Preferences{
		Granularity:    time.Duration(granularity) * time.Minute,
		Horizon:        time.Duration(horizon) * 24 * time.Hour,
		PreferSameWeek: q.Get("prefer_same_week") == "true",
		AvoidWeekends:  q.Get("avoid_weekends") == "true",
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rescheduleOptionsResponse{
		AppointmentID:   appointmentID,
		Available:       toSlotItems(opts.Available),
		Unavailable:     toSlotItems(opts.Unavailable),
		RescheduleCount: opts.RescheduleCount,
		MaxReschedules:  opts.Policy.MaxReschedules,
		NoticeHours:     opts.Policy.MinimumNotice.Hours(),
	})
}

func (h *BookingHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	history, err := h.svc.ListHistory(r.Context(), appointmentID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	items := make([]historyItem, 0, len(history))
	for _, e := range history {
		items = append(items, historyItem{
			HistoryID:      e.ID,
			OriginalStart:  formatTime(e.OriginalStart),
			RequestedStart: formatTime(e.RequestedStart),
			Reason:         e.Reason,
			InitiatedBy:    string(e.InitiatedBy),
			Outcome:        string(e.Outcome),
			Detail:         e.Detail,
			CreatedAt:      formatTime(e.CreatedAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointment_id": appointmentID, "history": items})
}

// Slots lists one local day of bookable starts for a professional.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	professionalID := strings.TrimSpace(q.Get("professional_id"))
	date := strings.TrimSpace(q.Get("date"))
	if professionalID == "" || date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "professional_id and date required")
		return
	}
	duration, ok := optionalInt(w, r, "duration_minutes", 0)
	if !ok {
		return
	}
	step, ok := optionalInt(w, r, "step_minutes", 0)
	if !ok {
		return
	}

	slots, err := h.svc.DaySlots(r.Context(), booking.SlotsRequest{
		ProfessionalID:  professionalID,
		ServiceID:       strings.TrimSpace(q.Get("service_id")),
		Date:            date,
		DurationMinutes: duration,
		StepMinutes:     step,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{StartTime: formatTime(s.Start), EndTime: formatTime(s.End), Available: true})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"professional_id": professionalID, "date": date, "slots": items})
}

// ClientHistory is the read-only past-appointment feed for a client.
func (h *BookingHandler) ClientHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("client_id"))
	professionalID := strings.TrimSpace(q.Get("professional_id"))
	if clientID == "" || professionalID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "client_id and professional_id required")
		return
	}
	before, ok := optionalTime(w, r, "before")
	if !ok {
		return
	}

	appts, err := h.svc.PastAppointments(r.Context(), clientID, professionalID, before)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "appointments": toAppointmentItems(appts)})
}

func decodeAppointmentRequest(w http.ResponseWriter, r *http.Request) (appointmentRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return appointmentRequest{}, false
	}
	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return appointmentRequest{}, false
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id required")
		return appointmentRequest{}, false
	}
	return req, true
}

func optionalTime(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid "+key)
		return time.Time{}, false
	}
	return t, true
}

func optionalInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return v, true
}
