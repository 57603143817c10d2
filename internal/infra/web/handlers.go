package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"membership-platform/internal/domain"
	"membership-platform/internal/domain/model"
	"membership-platform/internal/domain/ports/repository"
	"membership-platform/internal/usecase"
)

// webhookBodyLimit bounds what we read from the provider before parsing.
const webhookBodyLimit = 1 << 20

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", "invalid JSON request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// ===== Auth =====

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := s.userUC.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.auth.Mint(w, user); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "cannot mint session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := s.userUC.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown email and wrong password answer alike.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		writeDomainError(w, err)
		return
	}
	token, err := s.auth.Mint(w, user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "cannot mint session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// ===== Orders =====

func (s *Server) handleOrdersMine(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	f := repository.OrderFilter{
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	orders, total, err := s.orderUC.ListByUser(r.Context(), claims.Subject, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		data = append(data, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, struct {
		Data   []orderResponse `json:"data"`
		Total  int             `json:"total"`
		Limit  int             `json:"limit"`
		Offset int             `json:"offset"`
	}{Data: data, Total: total, Limit: f.Limit, Offset: f.Offset})
}

func (s *Server) handleOrderGet(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	publicID := chi.URLParam(r, "publicID")

	order, payments, err := s.orderUC.Get(r.Context(), publicID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// An existing order someone else owns is 403, not 404: public ids are
	// not guessable, so existence is not the secret, ownership is.
	if order.UserID != claims.Subject && !canPerform(model.UserRole(claims.Role), actionReadAnyOrder) {
		writeError(w, http.StatusForbidden, "forbidden", "not allowed for this account")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Order    orderResponse     `json:"order"`
		Payments []paymentResponse `json:"payments"`
	}{Order: toOrderResponse(order), Payments: toPaymentResponses(payments)})
}

func (s *Server) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	order, err := s.orderUC.Cancel(r.Context(), claims.Subject, chi.URLParam(r, "publicID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleOrderRefund(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req refundRequest
	if r.ContentLength > 0 {
		if !decodeAndValidate(w, r, &req) {
			return
		}
	}
	order, err := s.orderUC.Refund(r.Context(), claims.Subject, chi.URLParam(r, "publicID"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	order, pay, checkoutURL, err := s.checkoutUC.CreateOrder(r.Context(), usecase.CreateOrderParams{
		UserID:      claims.Subject,
		Type:        model.OrderType(req.Type),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Breakdown: model.PriceBreakdown{
			BaseCents:     req.Breakdown.BaseCents,
			TaxCents:      req.Breakdown.TaxCents,
			DiscountCents: req.Breakdown.DiscountCents,
		},
		ReferenceID:      req.ReferenceID,
		ReferenceType:    req.ReferenceType,
		Meta:             req.Meta,
		ExpiresInMinutes: req.ExpiresInMinutes,
		Provider:         strings.ToUpper(req.Provider),
	}, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Order       orderResponse     `json:"order"`
		Payments    []paymentResponse `json:"payments"`
		CheckoutURL string            `json:"checkout_url"`
	}{Order: toOrderResponse(order), Payments: toPaymentResponses([]*model.Payment{pay}), CheckoutURL: checkoutURL})
}

// ===== Membership & checkout =====

func (s *Server) handleMembershipGet(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	m, level, err := s.memberUC.GetActive(r.Context(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipResponse{
		Status:    string(m.Status),
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Level:     toLevelResponse(level),
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req checkoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	op, err := model.ParseMembershipOperation(req.Operation)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	order, checkoutURL, err := s.checkoutUC.Checkout(r.Context(), claims.Subject, req.LevelID, op)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Order       orderResponse `json:"order"`
		CheckoutURL string        `json:"checkout_url"`
	}{Order: toOrderResponse(order), CheckoutURL: checkoutURL})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_argument", "session_id is required")
		return
	}
	res, err := s.checkoutUC.VerifyPayment(r.Context(), claims.Subject, sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string        `json:"status"`
		Order  orderResponse `json:"order"`
	}{Status: string(res.Status), Order: toOrderResponse(res.Order)})
}

// ===== Levels =====

func (s *Server) handleLevelsList(w http.ResponseWriter, r *http.Request) {
	levels, err := s.levelUC.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	data := make([]levelResponse, 0, len(levels))
	for _, l := range levels {
		data = append(data, toLevelResponse(l))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []levelResponse `json:"data"`
	}{Data: data})
}

func (s *Server) handleLevelCreate(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	level, err := s.levelUC.Create(r.Context(), req.Name, req.PriceCents, req.Currency, req.Priority, req.DurationDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLevelResponse(level))
}

func (s *Server) handleLevelUpdate(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	level, err := s.levelUC.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.PriceCents, req.Currency, req.Priority, req.DurationDays)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLevelResponse(level))
}

func (s *Server) handleLevelDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.levelUC.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Webhooks =====

// handleWebhook feeds the raw body and signature header to the
// reconciliation use case. Any processing failure answers non-2xx so the
// provider redelivers; signature failures are terminal 400s.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if provider != "stripe" {
		writeError(w, http.StatusNotFound, "not_found", "unknown payment provider")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body", "cannot read request body")
		return
	}

	err = s.webhookUC.Process(r.Context(), provider, body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			writeError(w, http.StatusBadRequest, "signature_invalid", "webhook signature verification failed")
			return
		}
		s.log.Error().Err(err).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal", "event processing failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}
