package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/settings"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

// reminder-worker runs only the reminder dispatcher against the shared database, so
// delivery can scale apart from the booking API.
func main() {
	cfg, err := settings.Load("reminder-worker")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.ServiceName)
	// The in-memory store would dispatch nothing the API wrote.
	if _, err := config.RequiredString("DATABASE_URL"); err != nil {
		logger.Error("config error", "err", err)
		panic(err)
	}

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
	var writer notify.MessageWriter
	if cfg.KafkaBrokers != "" {
		kw := outbox.NewKafkaWriter(cfg.KafkaBrokers)
		defer func() { _ = kw.Close() }()
		writer = kw
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})
	}
	if cfg.BookingGRPCAddr != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "booking-service", Check: grpcx.HealthReadyCheck(cfg.BookingGRPCAddr, grpcserver.ServiceName)})
	}

	health := grpcserver.NewHealth(logger, checks...)
	if err := grpcserver.Start(ctx, logger, cfg.GRPCPort, health); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	dispatcher := reminders.NewDispatcher(store, notify.NewFromConfig(cfg.Notify, writer, logger), logger, cfg.Reminders, time.Now)
	logger.Info("reminder dispatcher starting", "interval", cfg.Reminders.Interval, "concurrency", cfg.Reminders.Concurrency)
	dispatcher.Run(ctx)
	logger.Info("reminder dispatcher stopped")
}
