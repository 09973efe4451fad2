package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/bootstrap"
	"github.com/Domenick1991/flightdesk/internal/email"
	"github.com/Domenick1991/flightdesk/internal/kafka"
	"github.com/Domenick1991/flightdesk/internal/logger"
	"github.com/Domenick1991/flightdesk/internal/service/monitor"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log, "flightdesk-worker")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDeps(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("init dependencies", zap.Error(err))
	}
	defer deps.Close()

	bookingService := deps.BookingService(cfg, logg)

	issuanceMonitor := monitor.New(deps.Bookings, bookingService, monitor.OptionsFromConfig(cfg.Worker), logg)
	if err := issuanceMonitor.Start(ctx); err != nil {
		logg.Fatal("start issuance monitor", zap.Error(err))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := issuanceMonitor.Stop(stopCtx); err != nil {
			logg.Warn("stop issuance monitor", zap.Error(err))
		}
	}()

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg)
		defer consumer.Close()

		emailSender := email.NewSender(logg)
		go func() {
			if err := consumer.Consume(ctx, emailSender.Send); err != nil {
				logg.Error("consumer stopped", zap.Error(err))
			}
		}()
	}

	expireTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	for {
		select {
		case <-expireTicker.C:
			expired, err := bookingService.ExpireStaleBookings(ctx)
			if err != nil {
				logg.Error("expire bookings", zap.Error(err))
				continue
			}
			if len(expired) > 0 {
				logg.Info("expired stale bookings", zap.Int("count", len(expired)))
			}
		case <-ctx.Done():
			logg.Info("shutting down")
			return
		}
	}
}
