package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation error")
	ErrAdmissionDenied   = errors.New("admission denied")
	ErrUpstreamProvider  = errors.New("upstream provider error")
	ErrPersistence       = errors.New("persistence error")
	ErrLeaseExpired      = errors.New("lease expired")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNoJobAvailable    = errors.New("no job available")
	// ErrUnitBusy means another executor holds the unit in generating.
	ErrUnitBusy = errors.New("unit generation in progress")
)
