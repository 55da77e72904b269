package pool

import "errors"

// Precondition failures. These abort the operation with no state change.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidGroup   = errors.New("invalid group")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidAddress = errors.New("invalid address")
)
