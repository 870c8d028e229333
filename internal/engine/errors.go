package engine

import "errors"

// Sentinel errors name the Engine's error taxonomy. Transport adapters
// map these to their own status codes with errors.Is; nothing in this
// package concerns itself with HTTP or gRPC.
var (
	ErrValidation          = errors.New("validation failed")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrForbidden           = errors.New("not the owner of this reservation")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationGone     = errors.New("reservation is no longer active")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
	ErrStorageTransient    = errors.New("transient storage error")
)
