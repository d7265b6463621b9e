package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/refdata"
)

// ReferenceHandler accepts the same reference events the Kafka consumer applies, for
// deployments without a broker and for seeding.
type ReferenceHandler struct {
	applier *refdata.Applier
	logger  *slog.Logger
}

func NewReferenceHandler(applier *refdata.Applier, logger *slog.Logger) *ReferenceHandler {
	return &ReferenceHandler{applier: applier, logger: logger}
}

type referenceEventRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *ReferenceHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req referenceEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.EventType = strings.TrimSpace(req.EventType)
	if req.EventType == "" || len(req.Payload) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "event_type and payload required")
		return
	}
	if err := h.applier.Apply(r.Context(), req.EventType, req.Payload); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "applied", "event_type": req.EventType})
}
