package order

import "context"

// Notifier is the customer notification channel. Calls are best-effort: the
// service attempts each one once, logs a failure and moves on; a failed
// notification never rolls back a state change that already persisted.
type Notifier interface {
	OrderReady(ctx context.Context, o *Order) error
	ItemRefunded(ctx context.Context, o *Order, itemID string) error
	OrderRefunded(ctx context.Context, o *Order) error
}
