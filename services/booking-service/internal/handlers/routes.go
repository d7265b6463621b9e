package handlers

import "net/http"

type Routes struct {
	Booking   *BookingHandler
	Reminders *ReminderHandler
	Reference *ReferenceHandler
}

// Register mounts the API on mux. Nil handlers leave their routes unregistered.
func (rt Routes) Register(mux *http.ServeMux) {
	if h := rt.Booking; h != nil {
		mux.HandleFunc("/api/v1/appointments", h.Appointments)
		mux.HandleFunc("/api/v1/appointments/confirm", h.Confirm)
		mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
		mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
		mux.HandleFunc("/api/v1/appointments/reschedule-options", h.RescheduleOptions)
		mux.HandleFunc("/api/v1/appointments/history", h.History)
		mux.HandleFunc("/api/v1/public/slots", h.Slots)
		mux.HandleFunc("/api/v1/clients/history", h.ClientHistory)
	}
	if h := rt.Reminders; h != nil {
		mux.HandleFunc("/api/v1/reminders/config", h.Config)
		mux.HandleFunc("/api/v1/reminders/process", h.Process)
	}
	if h := rt.Reference; h != nil {
		mux.HandleFunc("/api/v1/reference/events", h.Apply)
	}
}
