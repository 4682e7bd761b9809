package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vlessbot/internal/bootstrap"
	"vlessbot/internal/config"
	cronpkg "vlessbot/internal/cron"
	"vlessbot/internal/notify"
	"vlessbot/internal/panel"
	"vlessbot/internal/payment"
	"vlessbot/internal/pkg/guard"
	"vlessbot/internal/pkg/telegram"
	"vlessbot/internal/repository"
	"vlessbot/internal/router"
	"vlessbot/internal/service"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db, cfg.Trial.Days)
	serverRepo := repository.NewServerRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	promoRepo := repository.NewPromoRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// --- Telegram ---
	botAPI := telegram.NewBotAPI(cfg.Bot.Token)
	notifier, err := notify.New(cfg.Bot.Token, logger)
	if err != nil {
		logger.Fatal("Failed to create notifier", zap.Error(err))
	}

	// --- Check-payment guard (Redis with in-memory fallback) ---
	submitGuard, guardErr := guard.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, 30*time.Second)
	if guardErr != nil {
		logger.Warn("Redis unavailable for payment guard, using in-memory fallback", zap.Error(guardErr))
	}

	// --- Services ---
	panels := service.NewPanelFactory(cfg.API.SSLCertsDir)
	locker := panel.NewInboundLocker()
	provisioning := service.NewProvisioningService(
		userRepo, serverRepo, subRepo, panels, locker, cfg.Trial, cfg.Traffic, logger)
	gateway := payment.NewCryptoPayGateway(cfg.Payment.CryptoPayToken, cfg.Payment.CryptoPayURL, cfg.Payment.FiatCurrency)
	orders := service.NewOrdersService(gateway, paymentRepo, userRepo, tariffRepo, serverRepo, subRepo, logger)
	promos := service.NewPromoService(promoRepo, userRepo, logger)
	settlement := service.NewSettlementService(gateway, paymentRepo, provisioning, userRepo, submitGuard, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, settlement, orders, promos, provisioning, serverRepo, panels, cfg.API.Key, logger)

	// --- Scheduler ---
	jobRepos := &cronpkg.JobRepos{
		User:         userRepo,
		Server:       serverRepo,
		Subscription: subRepo,
		Payment:      paymentRepo,
	}
	scheduler := cronpkg.New(cfg, jobRepos, panels, notifier, botAPI, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx := scheduler.Stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
