package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentGateway = (*StripeGateway)(nil)

const ProviderStripe = "STRIPE"

// StripeGateway implements the checkout-session protocol using direct HTTP
// calls against the Stripe REST API (form-encoded requests, JSON responses).
type StripeGateway struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	client        *http.Client
	// tolerance bounds how old a signed webhook timestamp may be.
	tolerance time.Duration
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		baseURL:       "https://api.stripe.com/v1",
		client:        &http.Client{Timeout: 20 * time.Second},
		tolerance:     5 * time.Minute,
	}
}

func (g *StripeGateway) Name() string { return ProviderStripe }

// stripeSession is the subset of the checkout session object we read.
type stripeSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Status        string            `json:"status"`         // open | complete | expired
	PaymentStatus string            `json:"payment_status"` // paid | unpaid
	PaymentIntent string            `json:"payment_intent"`
	ExpiresAt     int64             `json:"expires_at"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		var se stripeError
		if err := json.Unmarshal(raw, &se); err == nil && se.Error.Message != "" {
			return fmt.Errorf("stripe error: %s (%s)", se.Error.Message, se.Error.Type)
		}
		return fmt.Errorf("stripe error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
		}
	}
	return nil
}

// CreateCheckoutSession opens a hosted checkout. The order and payment
// public ids ride in session metadata so the webhook can map the event back
// without a lookup table.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, order *model.Order, payment *model.Payment, successURL, cancelURL, description string) (*adapter.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("client_reference_id", order.PublicID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(order.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(order.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", description)
	form.Set("metadata["+adapter.MetaOrderPublicID+"]", order.PublicID)
	form.Set("metadata["+adapter.MetaPaymentPublicID+"]", payment.PublicID)
	if order.Meta != nil {
		if op, ok := order.Meta[adapter.MetaOperation].(string); ok {
			form.Set("metadata["+adapter.MetaOperation+"]", op)
		}
	}
	if order.ReferenceID != nil {
		form.Set("metadata["+adapter.MetaLevelID+"]", *order.ReferenceID)
	}
	if order.ExpiresAt != nil {
		// Stripe requires session expiry at least 30 minutes out.
		exp := *order.ExpiresAt
		if min := time.Now().Add(30 * time.Minute); exp.Before(min) {
			exp = min
		}
		form.Set("expires_at", strconv.FormatInt(exp.Unix(), 10))
	}

	var s stripeSession
	if err := g.do(ctx, http.MethodPost, "/checkout/sessions", form, &s); err != nil {
		return nil, err
	}
	return &adapter.CheckoutSession{
		ID:        s.ID,
		URL:       s.URL,
		ExpiresAt: time.Unix(s.ExpiresAt, 0),
	}, nil
}

// RetrieveSession is read-only by construction: a single GET.
func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*adapter.SessionStatus, error) {
	var s stripeSession
	if err := g.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil, &s); err != nil {
		return nil, err
	}
	return &adapter.SessionStatus{
		ID:            s.ID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		IntentID:      s.PaymentIntent,
		Metadata:      s.Metadata,
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amountCents int64, reason string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.do(ctx, http.MethodPost, "/refunds", form, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// stripeEvent is the envelope delivered to the webhook endpoint.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

// ParseEvent normalizes a verified payload into internal vocabulary.
func (g *StripeGateway) ParseEvent(rawBody []byte) (*adapter.WebhookEvent, error) {
	var ev stripeEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	var typ adapter.EventType
	switch ev.Type {
	case "checkout.session.completed":
		typ = adapter.EventCheckoutCompleted
	case "checkout.session.expired":
		typ = adapter.EventCheckoutExpired
	case "payment_intent.payment_failed":
		typ = adapter.EventPaymentFailed
	case "charge.refunded", "refund.created":
		typ = adapter.EventRefundExecuted
	default:
		typ = adapter.EventUnknown
	}

	obj := ev.Data.Object
	md := obj.Metadata
	if md == nil {
		md = map[string]string{}
	}
	intent := obj.PaymentIntent
	if intent == "" && strings.HasPrefix(obj.ID, "pi_") {
		intent = obj.ID
	}
	return &adapter.WebhookEvent{
		ID:        ev.ID,
		Type:      typ,
		SessionID: sessionIDFromObject(&obj),
		IntentID:  intent,
		Metadata:  md,
	}, nil
}

// sessionIDFromObject tolerates events whose object is not a checkout
// session (e.g. a payment intent): only cs_* ids are session ids.
func sessionIDFromObject(obj *stripeSession) string {
	if strings.HasPrefix(obj.ID, "cs_") {
		return obj.ID
	}
	return ""
}
