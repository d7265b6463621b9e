package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
)

type ReminderHandler struct {
	svc    *reminders.ConfigService
	logger *slog.Logger
}

func NewReminderHandler(svc *reminders.ConfigService, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{svc: svc, logger: logger}
}

type reminderConfigBody struct {
	ProfessionalID string   `json:"professional_id"`
	Enabled        *bool    `json:"enabled,omitempty"`
	OffsetsHours   []int    `json:"offsets_hours"`
	Channels       []string `json:"channels"`
	Template       string   `json:"template,omitempty"`
}

func toReminderConfigBody(cfg model.ReminderConfig) reminderConfigBody {
	enabled := cfg.Enabled
	channels := make([]string, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels = append(channels, string(ch))
	}
	return reminderConfigBody{
		ProfessionalID: cfg.ProfessionalID,
		Enabled:        &enabled,
		OffsetsHours:   cfg.OffsetsHours,
		Channels:       channels,
		Template:       cfg.Template,
	}
}

// Config serves GET (read) and PUT (replace) of a professional's reminder config.
func (h *ReminderHandler) Config(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		professionalID := strings.TrimSpace(r.URL.Query().Get("professional_id"))
		if professionalID == "" {
			httpx.WriteError(w, http.StatusBadRequest, "professional_id required")
			return
		}
		cfg, err := h.svc.GetReminderConfig(r.Context(), professionalID)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReminderConfigBody(cfg))
	case http.MethodPut:
		var body reminderConfigBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		body.ProfessionalID = strings.TrimSpace(body.ProfessionalID)
		if body.ProfessionalID == "" {
			httpx.WriteError(w, http.StatusBadRequest, "professional_id required")
			return
		}
		cfg := model.ReminderConfig{
			Enabled:      body.Enabled == nil || *body.Enabled,
			OffsetsHours: body.OffsetsHours,
			Template:     body.Template,
		}
		for _, ch := range body.Channels {
			cfg.Channels = append(cfg.Channels, model.Channel(ch))
		}
		saved, err := h.svc.SetReminderConfig(r.Context(), body.ProfessionalID, cfg)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toReminderConfigBody(saved))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Process runs one dispatcher pass synchronously, for operators and tests.
func (h *ReminderHandler) Process(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	n, err := h.svc.ProcessPending(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"processed": n})
}
