package models

import "errors"

// Domain errors. Handlers map these to HTTP status codes; everything else is
// treated as an internal error.
var (
	// Validation: rejected before any persistence
	ErrAmountMismatch          = errors.New("item prices do not sum to the expense total")
	ErrInvalidParticipantCount = errors.New("invalid participant count")
	ErrNegativeAmount          = errors.New("amount must not be negative")
	ErrInvalidDate             = errors.New("invalid date, expected YYYY-MM-DD")

	// Authorization
	ErrNotTripMember = errors.New("not an active member of this trip")

	// Conflict
	ErrEmailTaken = errors.New("user with this email already exists")

	// Not found
	ErrTripNotFound        = errors.New("trip not found")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrItemNotFound        = errors.New("expense item not found")
	ErrParticipantNotFound = errors.New("participant not found")

	// External dependency: no rate published for the requested currency/date
	ErrExchangeRateNotFound = errors.New("exchange rate not found")
)
