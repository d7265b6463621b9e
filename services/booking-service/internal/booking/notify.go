package booking

import (
	"context"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
)

const (
	rescheduledTemplate = "Hi {client_name}, your {service_name} appointment with {professional_name} has moved to {date} at {time}."
	cancelledTemplate   = "Hi {client_name}, your {service_name} appointment with {professional_name} on {date} at {time} has been cancelled."
)

// notifyClient tells the client about a committed change on the first configured
// channel they have an address for. It runs in the background; failures are logged.
func (s *Service) notifyClient(ctx context.Context, appt model.Appointment, tmpl string) {
	if s.sender == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
		defer cancel()

		msg, ok, err := s.changeMessage(ctx, appt, tmpl)
		if err != nil {
			s.logger.Warn("client notification skipped", "err", err, "appointment_id", appt.ID)
			return
		}
		if !ok {
			return
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Warn("client notification failed", "err", err, "appointment_id", appt.ID, "channel", msg.Channel)
		}
	}()
}

func (s *Service) changeMessage(ctx context.Context, appt model.Appointment, tmpl string) (notify.Message, bool, error) {
	client, err := s.store.GetClient(ctx, appt.ClientID)
	if err != nil {
		return notify.Message{}, false, err
	}
	cfg, err := reminders.LoadConfig(ctx, s.store, appt.ProfessionalID)
	if err != nil {
		return notify.Message{}, false, err
	}

	data := notify.TemplateData{ClientName: client.Name, ServiceName: appt.ServiceName, Start: appt.StartTime}
	if pro, err := s.store.GetProfessional(ctx, appt.ProfessionalID); err == nil {
		data.ProfessionalName = pro.Name
		data.Start = appt.StartTime.In(pro.Location())
	}

	channels := cfg.Channels
	if len(channels) == 0 {
		channels = model.DefaultReminderConfig(appt.ProfessionalID).Channels
	}
	for _, ch := range channels {
		if recipient := client.Recipient(ch); recipient != "" {
			return notify.Message{
				Channel:   ch,
				Recipient: recipient,
				Subject:   "Appointment update: " + appt.ServiceName,
				Body:      notify.Render(tmpl, data),
			}, true, nil
		}
	}
	return notify.Message{}, false, nil
}
