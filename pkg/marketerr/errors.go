// Package marketerr defines the neutral error kinds shared by every
// component of the marketplace engine. Callers are expected to use
// errors.Is against these sentinels; components wrap them with context
// via fmt.Errorf("...: %w", ...).
package marketerr

import "errors"

var (
	// ErrNotFound is returned when a referenced item, position, or sidecar
	// record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWrongState is returned when a position exists but is not in the
	// state required by the operation.
	ErrWrongState = errors.New("wrong state")

	// ErrAlreadyExists is returned on duplicate item registration.
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized is returned when the caller is not the role required
	// for the operation (owner, seller, borrower, lender, platform owner).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoBalance is returned when the caller holds zero units of an item.
	ErrNoBalance = errors.New("no balance")

	// ErrInsufficientBalance is returned when a position or ledger balance
	// is too low to satisfy the requested amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBadValue is returned when a payable value does not meet the value
	// an operation requires: unequal to it where an exact amount is due
	// (sale, loan funding), or below it where a minimum applies (bids,
	// raffle entries, loan repayment).
	ErrBadValue = errors.New("bad value")

	// ErrDeadlineNotReached is returned when a deadline-gated operation is
	// invoked before its deadline has passed.
	ErrDeadlineNotReached = errors.New("deadline not reached")

	// ErrDeadlineExceeded is returned when an operation that requires an
	// active deadline is invoked after it has passed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrBadParameter is returned for out-of-range durations, fees above
	// the cap, zero prices, or zero amounts.
	ErrBadParameter = errors.New("bad parameter")

	// ErrAlreadyFunded is returned when a loan operation requires an
	// unfunded loan but a lender is already set.
	ErrAlreadyFunded = errors.New("already funded")
)
