// internal/payment/payment.go
package payment

import "context"

type Gateway interface {
	// RefundPartial refunds part of a captured payment, in minor units.
	// Callers must pass the same idempotency key when retrying the same
	// logical refund.
	RefundPartial(ctx context.Context, paymentIntentID string, amountMinor int64, idempotencyKey string) (*RefundConfirmation, error)

	// RefundFull refunds the remaining captured amount.
	RefundFull(ctx context.Context, paymentIntentID string, idempotencyKey string) (*RefundConfirmation, error)

	// VerifyWebhook checks the provider signature over the raw payload and,
	// only if it matches, parses the event. Unverifiable payloads are
	// rejected before anything is looked up.
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}
