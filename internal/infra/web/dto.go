package web

import (
	"time"

	"github.com/go-playground/validator/v10"

	"membership-platform/internal/domain/model"
)

var validate = validator.New()

// ===== Requests =====

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=200"`
	DisplayName string `json:"display_name" validate:"max=150"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
}

type checkoutRequest struct {
	LevelID   string `json:"level_id" validate:"required,uuid4"`
	Operation string `json:"operation" validate:"required,oneof=NEW EXTEND UPGRADE DOWNGRADE"`
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type breakdownRequest struct {
	BaseCents     int64 `json:"base_cents" validate:"gte=0"`
	TaxCents      int64 `json:"tax_cents" validate:"gte=0"`
	DiscountCents int64 `json:"discount_cents" validate:"gte=0"`
}

type createOrderRequest struct {
	Type             string                 `json:"type" validate:"required,oneof=purchase renewal upgrade downgrade"`
	AmountCents      int64                  `json:"amount_cents" validate:"required,gt=0"`
	Currency         string                 `json:"currency" validate:"required,len=3,alpha"`
	Breakdown        breakdownRequest       `json:"breakdown"`
	ReferenceID      *string                `json:"reference_id" validate:"omitempty,max=64"`
	ReferenceType    *string                `json:"reference_type" validate:"omitempty,max=64"`
	Meta             map[string]interface{} `json:"meta"`
	ExpiresInMinutes int                    `json:"expires_in_minutes" validate:"omitempty,gte=1,lte=1440"`
	Provider         string                 `json:"provider" validate:"omitempty,oneof=stripe"`
	Description      string                 `json:"description" validate:"omitempty,max=200"`
}

type levelRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	PriceCents   int64  `json:"price_cents" validate:"required,gt=0"`
	Currency     string `json:"currency" validate:"required,len=3,alpha"`
	Priority     int    `json:"priority" validate:"required,gt=0"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0"`
}

// ===== Responses =====

// Internal uuid primary keys never leave the service; only public ids do.
type orderResponse struct {
	PublicID  string                 `json:"id"`
	OrderNo   string                 `json:"order_no"`
	Type      string                 `json:"type"`
	Status    string                 `json:"status"`
	Amount    int64                  `json:"amount_cents"`
	Currency  string                 `json:"currency"`
	Breakdown breakdownResponse      `json:"breakdown"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	PaidAt    *time.Time             `json:"paid_at,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}

type breakdownResponse struct {
	BaseCents     int64 `json:"base_cents"`
	TaxCents      int64 `json:"tax_cents"`
	DiscountCents int64 `json:"discount_cents"`
}

type paymentResponse struct {
	PublicID string     `json:"id"`
	Provider string     `json:"provider"`
	Status   string     `json:"status"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
}

type membershipResponse struct {
	Status    string        `json:"status"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Level     levelResponse `json:"level"`
}

type levelResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Currency     string `json:"currency"`
	Priority     int    `json:"priority"`
	DurationDays int    `json:"duration_days"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		PublicID: o.PublicID,
		OrderNo:  o.OrderNo,
		Type:     string(o.Type),
		Status:   string(o.Status),
		Amount:   o.AmountCents,
		Currency: o.Currency,
		Breakdown: breakdownResponse{
			BaseCents:     o.Breakdown.BaseCents,
			TaxCents:      o.Breakdown.TaxCents,
			DiscountCents: o.Breakdown.DiscountCents,
		},
		Meta:      o.Meta,
		CreatedAt: o.CreatedAt,
		PaidAt:    o.PaidAt,
		ExpiresAt: o.ExpiresAt,
	}
}

func toPaymentResponses(ps []*model.Payment) []paymentResponse {
	out := make([]paymentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, paymentResponse{
			PublicID: p.PublicID,
			Provider: p.Provider,
			Status:   string(p.Status),
			PaidAt:   p.PaidAt,
		})
	}
	return out
}

func toLevelResponse(l *model.MembershipLevel) levelResponse {
	return levelResponse{
		ID:           l.ID,
		Name:         l.Name,
		PriceCents:   l.PriceCents,
		Currency:     l.Currency,
		Priority:     l.Priority,
		DurationDays: l.DurationDays,
	}
}
