package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/refdata"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, err := settings.Load("booking-service")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.ServiceName))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	store, closeStore, err := storage.Open(ctx, logger, storage.OpenConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		AutoMigrate: cfg.DBAutoMigrate,
	})
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer closeStore()

	checks := []runtime.ReadyCheck{{Name: "store", Check: store.Ready}}

	var writer *kafka.Writer
	if cfg.KafkaBrokers != "" {
		writer = outbox.NewKafkaWriter(cfg.KafkaBrokers)
		defer func() { _ = writer.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})

		publisher := outbox.NewPublisher(store, writer, logger, outbox.PublisherConfig{
			PollEvery: cfg.OutboxInterval,
			BatchSize: cfg.OutboxBatch,
		})
		go publisher.Run(ctx)

		applier := refdata.NewApplier(store)
		refConsumer := consumer.New(logger, store, consumer.Config{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  cfg.ConsumeTopics,
		}, func(ctx context.Context, msg kafka.Message) error {
			meta := kafkax.ExtractEventMeta(msg)
			err := applier.Apply(ctx, meta.EventType, msg.Value)
			var invalid *refdata.InvalidEventError
			if errors.As(err, &invalid) {
				logger.Error("reference event dropped", "err", err, "event_type", meta.EventType, "aggregate_id", meta.AggregateID)
				return nil
			}
			return err
		})
		go refConsumer.Run(ctx)
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox publisher and reference consumer disabled")
	}

	var notifyWriter notify.MessageWriter
	if writer != nil {
		notifyWriter = writer
	}
	sender := notify.NewFromConfig(cfg.Notify, notifyWriter, logger)

	dispatcher := reminders.NewDispatcher(store, sender, logger, cfg.Reminders, time.Now)
	if cfg.ReminderWorkerEnabled {
		go dispatcher.Run(ctx)
	}

	svc := booking.NewService(store, logger, booking.Options{
		Reminders:      reminders.NewScheduler(cfg.Reminders.MaxAttempts, time.Now),
		Sender:         sender,
		MaxSuggestions: cfg.MaxSuggestions,
		NotifyTimeout:  cfg.NotifyTimeout,
	})

	v := verifier(cfg, logger)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.Routes{
		Booking:   handlers.NewBookingHandler(svc, logger),
		Reminders: handlers.NewReminderHandler(reminders.NewConfigService(store, dispatcher), logger),
		Reference: handlers.NewReferenceHandler(refdata.NewApplier(store), logger),
	}.Register(mux)

	health := grpcserver.NewHealth(logger, checks...)
	if err := grpcserver.Start(ctx, logger, cfg.GRPCPort, health); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	var keyFn httpx.KeyFunc = httpx.ClientIP
	if v.Enabled() {
		keyFn = httpx.HeaderOrIP("X-User-Id")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-Professional-Id"},
			ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(cfg.BodyLimitBytes)),
		httpx.WithTimeout(cfg.RequestTimeout),
		handlers.RequireAuth(v),
		rateLimiter(cfg, rdb, keyFn, logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimiter keys on the verified caller when auth is on. Without auth the identity
// headers are caller-controlled, so only the client address is used.
func rateLimiter(cfg settings.Settings, rdb *redis.Client, key httpx.KeyFunc, logger *slog.Logger) httpx.Middleware {
	if rdb == nil {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
		return httpx.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute).WithKey(key).Middleware()
	}
	logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute, "redis_addr", cfg.RedisAddr)
	return httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "booking-rl").WithKey(key).Middleware(logger, true)
}

func verifier(cfg settings.Settings, logger *slog.Logger) auth.Verifier {
	v := auth.Verifier{Secret: cfg.AuthJWTSecret}
	if cfg.AuthJWKSURL != "" {
		v.JWKS = auth.NewJWKSClient(cfg.AuthJWKSURL, 5*time.Minute)
	}
	if !v.Enabled() {
		logger.Warn("AUTH_JWT_SECRET and AUTH_JWKS_URL not set; API is unauthenticated")
	}
	return v
}
