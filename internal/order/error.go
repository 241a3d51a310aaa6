package order

import "errors"

var (
	// ErrOrderNotFound covers both a missing order and an order that does
	// not belong to the calling merchant, so existence never leaks to
	// unauthorized callers.
	ErrOrderNotFound = errors.New("order not found")
	ErrItemNotFound  = errors.New("item not found")

	// ErrAlreadyRefunded signals a mutation attempt on a terminal,
	// refunded item or order.
	ErrAlreadyRefunded = errors.New("already refunded")

	// ErrInvalidPaymentState signals a refund attempt while the payment is
	// not captured.
	ErrInvalidPaymentState = errors.New("payment is not in a refundable state")

	// ErrVersionConflict is returned by the store when a concurrent write
	// won the revision check.
	ErrVersionConflict = errors.New("order was modified concurrently")

	// ErrInconsistentState means the gateway confirmed a refund but the
	// order record could not be updated. Money moved, the record did not;
	// this needs manual reconciliation and must never be retried through
	// the gateway.
	ErrInconsistentState = errors.New("refund settled but order update failed")

	ErrInvalidStatus = errors.New("invalid status")
)
