package sched

import (
	"context"
	"time"

	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/usecase"

	"github.com/rs/zerolog"
)

// PaymentReconciler periodically scans for stale pending payments and asks
// the provider what actually happened to them. This covers deliveries the
// webhook endpoint never saw, e.g. after a crash or a network partition.
type PaymentReconciler struct {
	webhookUC  usecase.WebhookUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(webhookUC usecase.WebhookUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		webhookUC:  webhookUC,
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending payments failed")
		return
	}
	for _, p := range pending {
		if p.SessionID == "" {
			continue
		}
		if err := w.webhookUC.ReconcilePayment(ctx, p); err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.PublicID).Msg("reconcile failed")
			continue
		}
	}
}
