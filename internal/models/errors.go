package models

import "errors"

// Sentinel errors for settlement and store outcomes. The handler layer maps
// these to HTTP status codes; business rejections are expected results, not
// exceptional conditions.
var (
	// ErrInvalidOrder means the order itself is malformed (non-positive
	// quantity or price, unknown side). Recoverable by resubmission.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientFunds means a BUY's total cost exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrInsufficientHoldings means a SELL exceeds the held quantity,
	// including selling a symbol never held.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrAccountNotFound means the user has no account row.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConflict means concurrent-write contention exhausted the engine's
	// retries. The caller should resubmit.
	ErrConflict = errors.New("write conflict")

	// ErrStoreUnavailable means the underlying store is unreachable or timed
	// out. It must never be interpreted as "trade rejected": the store state
	// is unknown.
	ErrStoreUnavailable = errors.New("store unavailable")
)
