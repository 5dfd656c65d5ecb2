package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity is missing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates an operation not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientStock indicates a reservation exceeding available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientReserved indicates a withdrawal exceeding the reserved quantity.
	ErrInsufficientReserved = errors.New("insufficient reserved quantity")
	// ErrInsufficientOnHand indicates a withdrawal exceeding the on-hand quantity.
	ErrInsufficientOnHand = errors.New("insufficient on-hand quantity")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrExceedsRemaining indicates a payment larger than the remaining balance.
	ErrExceedsRemaining = errors.New("amount exceeds remaining balance")
	// ErrInvalidTransfer indicates an ill-formed transfer request.
	ErrInvalidTransfer = errors.New("invalid transfer")
	// ErrPermissionDenied indicates a role or ownership check failed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates a login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
