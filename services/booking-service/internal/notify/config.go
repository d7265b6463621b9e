package notify

import (
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Config struct {
	SMTPHost string
	SMTPPort string
	SMTPFrom string

	SMSWebhookURL   string
	SMSWebhookToken string

	WhatsAppWebhookURL   string
	WhatsAppWebhookToken string

	// KafkaTopic relays channels without a direct provider to an external notification service.
	KafkaTopic string
}

// NewFromConfig routes each channel to its configured provider. Channels without one go to the
// Kafka relay when a writer and topic are set, otherwise to the noop sender.
func NewFromConfig(cfg Config, writer MessageWriter, logger *slog.Logger) *Router {
	var fallback Sender = NewNoopSender(logger)
	if writer != nil && cfg.KafkaTopic != "" {
		fallback = NewKafkaSender(writer, cfg.KafkaTopic)
	}

	senders := map[model.Channel]Sender{
		model.ChannelEmail:    fallback,
		model.ChannelSMS:      fallback,
		model.ChannelWhatsApp: fallback,
	}
	if cfg.SMTPHost != "" && cfg.SMTPFrom != "" {
		senders[model.ChannelEmail] = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	if cfg.SMSWebhookURL != "" {
		senders[model.ChannelSMS] = NewWebhookSender("sms", cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}
	if cfg.WhatsAppWebhookURL != "" {
		senders[model.ChannelWhatsApp] = NewWebhookSender("whatsapp", cfg.WhatsAppWebhookURL, cfg.WhatsAppWebhookToken)
	}
	for ch, s := range senders {
		logger.Info("notification channel configured", "channel", ch, "sender", senderName(s))
	}
	return NewRouter(senders)
}

func senderName(s Sender) string {
	switch v := s.(type) {
	case *SMTPSender:
		return "smtp"
	case *WebhookSender:
		return "webhook:" + v.name
	case *KafkaSender:
		return "kafka:" + v.topic
	default:
		return "noop"
	}
}
