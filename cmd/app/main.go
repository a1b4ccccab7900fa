// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mobilemoney-subscription/internal/config"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	pg "mobilemoney-subscription/internal/infra/db/postgres"
	"mobilemoney-subscription/internal/infra/logging"
	"mobilemoney-subscription/internal/infra/metrics"
	"mobilemoney-subscription/internal/infra/payment"
	red "mobilemoney-subscription/internal/infra/redis"
	"mobilemoney-subscription/internal/infra/sched"
	"mobilemoney-subscription/internal/infra/web"
	"mobilemoney-subscription/internal/infra/worker"
	"mobilemoney-subscription/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	catalogCache := red.NewCatalogCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	depositRepo := pg.NewDepositRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Gateways (pawaPay default, Campay fallback) ----
	var defaultGW adapter.MobileMoneyGateway
	var extraGWs []adapter.MobileMoneyGateway
	webhookSecrets := map[string]string{}
	if cfg.Payment.PawaPay.APIToken != "" {
		gw := payment.NewPawaPayGateway(cfg.Payment.PawaPay.BaseURL, cfg.Payment.PawaPay.APIToken)
		webhookSecrets[gw.Name()] = cfg.Payment.PawaPay.WebhookSecret
		if cfg.Payment.Default == gw.Name() {
			defaultGW = gw
		} else {
			extraGWs = append(extraGWs, gw)
		}
	}
	if cfg.Payment.Campay.APIToken != "" {
		gw := payment.NewCampayGateway(cfg.Payment.Campay.BaseURL, cfg.Payment.Campay.APIToken)
		webhookSecrets[gw.Name()] = cfg.Payment.Campay.WebhookSecret
		if cfg.Payment.Default == gw.Name() {
			defaultGW = gw
		} else {
			extraGWs = append(extraGWs, gw)
		}
	}
	if defaultGW == nil {
		logger.Fatal().Str("default", cfg.Payment.Default).Msg("no gateway configured for payment.default")
	}

	// ---- Workers and use cases ----
	wpool := worker.NewPool(4, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	activationUC := usecase.NewActivationUseCase(subRepo, logger)
	replayer := usecase.NewActivationReplay(wpool, depositRepo, activationUC, logger)
	paymentUC := usecase.NewPaymentUseCase(
		depositRepo, activationUC, txManager,
		defaultGW, extraGWs,
		rateLimiter, cfg.RateLimit.InitiatePerHour,
		replayer, catalogCache, logger,
	)

	// ---- Background reconciler ----
	reconciler := sched.NewDepositReconciler(paymentUC, depositRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP server ----
	srv := web.NewServer(paymentUC, cfg.Auth.JWTSecret, webhookSecrets, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", defaultGW.Name()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
