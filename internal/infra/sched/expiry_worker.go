package sched

import (
	"context"
	"time"

	"membership-platform/internal/infra/metrics"
	"membership-platform/internal/usecase"

	"github.com/rs/zerolog"
)

// ExpiryWorker periodically flips overdue pending orders and lapsed
// memberships to their terminal states via the use cases.
type ExpiryWorker struct {
	interval time.Duration
	orderUC  usecase.OrderUseCase
	memberUC usecase.MembershipUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, orderUC usecase.OrderUseCase, memberUC usecase.MembershipUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		interval: interval,
		orderUC:  orderUC,
		memberUC: memberUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	n, err := w.orderUC.ExpirePending(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("order expiry sweep failed")
	}
	if n > 0 {
		metrics.IncOrdersExpired(n)
		w.log.Info().Int("count", n).Msg("pending orders expired")
	}

	m, err := w.memberUC.FinishExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("membership expiry sweep failed")
	}
	if m > 0 {
		metrics.IncMembershipsExpired(m)
		w.log.Info().Int("count", m).Msg("memberships expired")
	}
}
