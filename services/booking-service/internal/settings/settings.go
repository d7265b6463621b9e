package settings

import (
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/refdata"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
)

type Settings struct {
	ServiceName string
	Port        string
	GRPCPort    string

	// BookingGRPCAddr lets the reminder worker gate readiness on the booking service,
	// which owns the schema.
	BookingGRPCAddr string

	// DatabaseURL empty selects the in-memory store.
	DatabaseURL   string
	DBAutoMigrate bool
	DBMaxConns    int
	DBMinConns    int

	KafkaBrokers   string
	KafkaGroupID   string
	ConsumeTopics  []string
	OutboxInterval time.Duration
	OutboxBatch    int

	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int
	CORSOrigins        []string
	BodyLimitBytes     int
	RequestTimeout     time.Duration

	// Empty AuthJWTSecret and AuthJWKSURL leave the API unauthenticated.
	AuthJWTSecret string
	AuthJWKSURL   string

	MaxSuggestions int
	NotifyTimeout  time.Duration

	ReminderWorkerEnabled bool
	Reminders             reminders.DispatcherConfig

	Notify notify.Config
}

func Load(defaultService string) (Settings, error) {
	s := Settings{
		ServiceName:     config.String("SERVICE_NAME", defaultService),
		BookingGRPCAddr: config.String("BOOKING_GRPC_ADDR", ""),

		DatabaseURL:   config.String("DATABASE_URL", ""),
		DBAutoMigrate: config.Bool("DB_AUTO_MIGRATE", false),
		DBMaxConns:    config.Int("DB_MAX_CONNS", 10),
		DBMinConns:    config.Int("DB_MIN_CONNS", 1),

		KafkaBrokers:   config.String("KAFKA_BROKERS", ""),
		KafkaGroupID:   config.String("KAFKA_GROUP_ID", "booking-service"),
		ConsumeTopics:  config.List("KAFKA_CONSUME_TOPICS", strings.Join(refdata.Topics, ",")),
		OutboxInterval: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatch:    config.Int("OUTBOX_BATCH_SIZE", 50),

		RedisAddr:          config.String("REDIS_ADDR", ""),
		RedisPassword:      config.String("REDIS_PASSWORD", ""),
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigins:        config.List("CORS_ALLOWED_ORIGINS", ""),
		BodyLimitBytes:     config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20),
		RequestTimeout:     config.Duration("HTTP_REQUEST_TIMEOUT", 10*time.Second),

		AuthJWTSecret: config.String("AUTH_JWT_SECRET", ""),
		AuthJWKSURL:   config.String("AUTH_JWKS_URL", ""),

		MaxSuggestions: config.Int("MAX_SUGGESTIONS", 5),
		NotifyTimeout:  config.Duration("NOTIFY_TIMEOUT", 5*time.Second),

		ReminderWorkerEnabled: config.Bool("REMINDER_WORKER_ENABLED", true),
		Reminders: reminders.DispatcherConfig{
			Interval:    config.Duration("REMINDER_INTERVAL", 2*time.Second),
			BatchSize:   config.Int("REMINDER_BATCH_SIZE", 50),
			Backoff:     config.Duration("REMINDER_BACKOFF", time.Minute),
			Lease:       config.Duration("REMINDER_LEASE", 2*time.Minute),
			Concurrency: config.Int("REMINDER_CONCURRENCY", 4),
			SendTimeout: config.Duration("REMINDER_SEND_TIMEOUT", 10*time.Second),
			MaxAttempts: config.Int("REMINDER_MAX_ATTEMPTS", reminders.DefaultMaxAttempts),
		},

		Notify: notify.Config{
			SMTPHost:             config.String("SMTP_HOST", ""),
			SMTPPort:             config.String("SMTP_PORT", "25"),
			SMTPFrom:             config.String("SMTP_FROM", ""),
			SMSWebhookURL:        config.String("SMS_WEBHOOK_URL", ""),
			SMSWebhookToken:      config.String("SMS_WEBHOOK_TOKEN", ""),
			WhatsAppWebhookURL:   config.String("WHATSAPP_WEBHOOK_URL", ""),
			WhatsAppWebhookToken: config.String("WHATSAPP_WEBHOOK_TOKEN", ""),
			KafkaTopic:           config.String("NOTIFY_KAFKA_TOPIC", ""),
		},
	}

	var err error
	if s.Port, err = config.Port("PORT", "8083"); err != nil {
		return Settings{}, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9093"); err != nil {
		return Settings{}, err
	}
	return s, nil
}
