package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-platform/internal/config"
	pg "membership-platform/internal/infra/db/postgres"
	"membership-platform/internal/infra/logging"
	"membership-platform/internal/infra/metrics"
	"membership-platform/internal/infra/notify"
	"membership-platform/internal/infra/payment"
	red "membership-platform/internal/infra/redis"
	"membership-platform/internal/infra/sched"
	"membership-platform/internal/infra/web"
	"membership-platform/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	txm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	levelRepo := pg.NewLevelRepo(pool)
	membershipRepo := pg.NewMembershipRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)

	// ---- Payment gateway ----
	gateway := payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)

	// ---- Use cases ----
	orderTTL := time.Duration(cfg.Payment.OrderTTLMinutes) * time.Minute
	userUC := usecase.NewUserUseCase(userRepo, logger)
	levelUC := usecase.NewLevelUseCase(levelRepo, logger)
	memberUC := usecase.NewMembershipUseCase(membershipRepo, levelRepo, logger)
	orderUC := usecase.NewOrderUseCase(orderRepo, paymentRepo, gateway, txm, orderTTL, logger)
	checkoutUC := usecase.NewCheckoutUseCase(memberUC, orderUC, orderRepo, paymentRepo, gateway, cfg.Payment.Stripe.SuccessURL, cfg.Payment.Stripe.CancelURL, logger)

	mailer := notify.NewSMTPSender(&cfg.SMTP)
	notifUC := usecase.NewNotificationUseCase(mailer, 256, logger)
	go func() { _ = notifUC.Run(ctx) }()

	webhookUC := usecase.NewWebhookUseCase(gateway, orderRepo, paymentRepo, userRepo, memberUC, notifUC, txm, locker, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.SecureCookie, cfg.Auth.CookieDomain, cfg.Auth.SessionTTL)
	srv := web.NewServer(userUC, orderUC, checkoutUC, memberUC, levelUC, webhookUC, auth, rateLimiter, cfg.RateLimit.CheckoutPerMinute, logger)
	srv.SetHealthCheck(func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background workers ----
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, orderUC, memberUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	reconciler := sched.NewPaymentReconciler(webhookUC, paymentRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- DB pool stats for /metrics ----
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	cancel()
}
