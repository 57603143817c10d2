package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"membership-platform/internal/domain"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: kind, Message: msg})
}

// writeValidationError answers 422 with a per-field detail map.
func writeValidationError(w http.ResponseWriter, err error) {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Error:   "validation_failed",
		Message: "request body failed validation",
		Fields:  fields,
	})
}

// writeDomainError maps the sentinel taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with no internals leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "not allowed for this account")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", "resource already exists")
	case errors.Is(err, domain.ErrActiveMembershipExists):
		writeError(w, http.StatusConflict, "active_membership_exists", "an active membership already exists")
	case errors.Is(err, domain.ErrNoActiveMembership):
		writeError(w, http.StatusConflict, "no_active_membership", "no active membership for this operation")
	case errors.Is(err, domain.ErrInvalidOperation):
		writeError(w, http.StatusConflict, "invalid_operation", err.Error())
	case errors.Is(err, domain.ErrOrderExpired):
		writeError(w, http.StatusConflict, "order_expired", "the order has expired")
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		writeError(w, http.StatusConflict, "conflict", "the resource is not in a state that allows this operation")
	case errors.Is(err, domain.ErrSignatureInvalid):
		writeError(w, http.StatusBadRequest, "signature_invalid", "webhook signature verification failed")
	case errors.Is(err, domain.ErrProviderUnreachable):
		writeError(w, http.StatusBadGateway, "provider_unreachable", "payment provider is unreachable")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
