package payment

import "fmt"

// RefundConfirmation is the gateway's acknowledgement that money moved.
type RefundConfirmation struct {
	RefundID string
	Amount   int64
	Status   string
}

// GatewayError wraps a failed or ambiguous gateway call. The idempotency key
// that was used is carried along so the caller (or an operator) can retry the
// same logical refund without risking a duplicate.
type GatewayError struct {
	Op             string
	IdempotencyKey string
	Err            error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed (idempotency key %s): %v", e.Op, e.IdempotencyKey, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type EventType string

const (
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentFailed    EventType = "payment_intent.payment_failed"
	EventChargeRefunded   EventType = "charge.refunded"
)

// Event is a verified webhook event, reduced to what reconciliation needs.
type Event struct {
	ID              string
	Type            EventType
	PaymentIntentID string
}
