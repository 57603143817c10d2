package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase hands confirmation emails to a background dispatcher.
// Enqueue never blocks business flows and a full queue drops with a log line
// rather than stalling a webhook response.
type NotificationUseCase interface {
	EnqueuePaymentConfirmation(email string, order *model.Order)
	EnqueueMembershipChange(email string, m *model.Membership, level *model.MembershipLevel)
	// Run drains the queue until ctx is cancelled.
	Run(ctx context.Context) error
}

type mail struct {
	to      string
	subject string
	body    string
}

type notificationUC struct {
	sender adapter.EmailSender
	queue  chan mail
	log    *zerolog.Logger
}

func NewNotificationUseCase(sender adapter.EmailSender, queueSize int, logger *zerolog.Logger) *notificationUC {
	if queueSize <= 0 {
		queueSize = 256
	}
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &notificationUC{sender: sender, queue: make(chan mail, queueSize), log: &l}
}

func (uc *notificationUC) enqueue(m mail) {
	select {
	case uc.queue <- m:
	default:
		uc.log.Warn().Str("to", m.to).Str("subject", m.subject).Msg("notification queue full, dropping")
	}
}

func (uc *notificationUC) EnqueuePaymentConfirmation(email string, order *model.Order) {
	uc.enqueue(mail{
		to:      email,
		subject: fmt.Sprintf("Payment received for order %s", order.OrderNo),
		body: fmt.Sprintf(
			"We received your payment of %d.%02d %s for order %s. Your membership has been updated.",
			order.AmountCents/100, order.AmountCents%100, order.Currency, order.OrderNo),
	})
}

func (uc *notificationUC) EnqueueMembershipChange(email string, m *model.Membership, level *model.MembershipLevel) {
	uc.enqueue(mail{
		to:      email,
		subject: fmt.Sprintf("Your membership is now %s", level.Name),
		body: fmt.Sprintf(
			"Your %s membership is active until %s.",
			level.Name, m.EndDate.Format("2 January 2006")),
	})
}

func (uc *notificationUC) Run(ctx context.Context) error {
	uc.log.Info().Msg("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			uc.log.Info().Msg("notification dispatcher stopped")
			return ctx.Err()
		case m := <-uc.queue:
			if err := uc.sender.Send(ctx, m.to, m.subject, m.body); err != nil {
				uc.log.Error().Err(err).Str("to", m.to).Msg("notification send failed")
			}
		}
	}
}
