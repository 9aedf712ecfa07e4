package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puntoventa/backend/internal/config"
	delivery "github.com/puntoventa/backend/internal/delivery/http"
	"github.com/puntoventa/backend/internal/messaging/kafka"
	"github.com/puntoventa/backend/internal/payments/stripe"
	"github.com/puntoventa/backend/internal/repository/postgres"
	"github.com/puntoventa/backend/internal/service"
	"github.com/puntoventa/backend/internal/worker"
)

func main() {
	slog.SetLogLoggerLevel(slog.LevelDebug)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	// --- Database ---
	db, err := postgres.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to init database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	productRepo := postgres.NewProductRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	saleRepo := postgres.NewSaleRepository(db)
	accountRepo := postgres.NewConnectedAccountRepository(db)
	commissionRepo := postgres.NewCommissionRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)
	sessionRepo := postgres.NewPaymentSessionRepository(db)

	// --- Payment gateway ---
	gateway := stripe.NewGateway(cfg.StripeSecretKey)

	// --- Kafka ---
	broker, err := kafka.NewBroker(cfg.KafkaBrokers, "pos-backend", slog.Default())
	if err != nil {
		slog.Error("Failed to init kafka broker", "err", err)
		os.Exit(1)
	}
	defer broker.Close()

	// --- Services ---
	catalogSvc := service.NewCatalogService(productRepo, categoryRepo)
	saleSvc := service.NewSaleService(saleRepo, broker)
	commissionSvc := service.NewCommissionService(accountRepo, commissionRepo, gateway, broker, cfg.PlatformCountry, cfg.Currency)
	checkoutSvc := service.NewCheckoutService(gateway, sessionRepo, commissionRepo, accountRepo, cfg.Currency, cfg.PublicBaseURL)
	verifySvc := service.NewVerifyService(gateway, sessionRepo, saleSvc, commissionSvc)
	accountSvc := service.NewAccountService(accountRepo, gateway, cfg.DefaultRate, cfg.PublicBaseURL)

	// --- HTTP API ---
	handler := delivery.NewHandler(catalogSvc, saleSvc, checkoutSvc, verifySvc, accountSvc, commissionSvc, saleRepo, settingsRepo, cfg.AdminToken)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: delivery.EnableCORS(mux),
	}

	// --- Start everything ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	payoutWorker := worker.NewPayoutWorker(gateway, commissionRepo, broker, broker, cfg.PayoutMaxAttempts)
	go func() {
		if err := payoutWorker.Run(ctx); err != nil {
			slog.Error("Payout worker stopped", "err", err)
			cancel()
		}
	}()

	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "err", err)
	}
}
