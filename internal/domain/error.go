package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound               = errors.New("entity not found")
	ErrAlreadyExists          = errors.New("entity already exists")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidState           = errors.New("operation not valid for current state")
	ErrConflict               = errors.New("conflicting state")
	ErrInvalidOperation       = errors.New("invalid membership operation")
	ErrForbidden              = errors.New("caller is not allowed to access this resource")
	ErrSignatureInvalid       = errors.New("webhook signature invalid")
	ErrNoActiveMembership     = errors.New("no active membership")
	ErrActiveMembershipExists = errors.New("user already has an active membership")
	ErrOrderExpired           = errors.New("order has expired")

	// Infrastructure-level errors surfaced through repositories
	ErrInvalidExecContext  = errors.New("invalid database execution context")
	ErrOperationFailed     = errors.New("database operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrProviderUnreachable = errors.New("payment provider unreachable")
)
