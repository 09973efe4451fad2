package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightdesk/config"
	"github.com/Domenick1991/flightdesk/internal/bootstrap"
	"github.com/Domenick1991/flightdesk/internal/logger"
	"github.com/Domenick1991/flightdesk/internal/payment"
	"github.com/Domenick1991/flightdesk/internal/service/webhook"
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

	logg, err := logger.New(cfg.Log, "flightdesk")
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

	searchService := deps.SearchService(cfg, logg)
	defer searchService.Close()
	bookingService := deps.BookingService(cfg, logg)

	if cfg.Payment.Secret == "" {
		logg.Warn("payment secret is empty, every payment callback will be rejected")
	}

	if err := bootstrap.Run(ctx, cfg, logg, bootstrap.Services{
		Searches: searchService,
		Bookings: bookingService,
		Webhooks: webhook.NewIngress(bookingService, deps.Dedupe, logg),
		Verifier: payment.NewVerifier(cfg.Payment.Secret),
	}); err != nil {
		logg.Error("server error", zap.Error(err))
	}
}
