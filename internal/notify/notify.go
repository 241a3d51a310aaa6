// Package notify delivers customer notifications on a strictly best-effort
// contract: attempt once, log the failure, never block or roll back the
// caller.
package notify

import (
	"context"
	"fmt"

	"umari-core/internal/logger"
	"umari-core/internal/order"

	"go.uber.org/zap"
)

// Sender delivers a single rendered message to a customer address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher implements order.Notifier on top of a Sender. Each call hands
// the message to a goroutine and returns immediately; the caller never sees
// a delivery error.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

func (d *Dispatcher) OrderReady(ctx context.Context, o *order.Order) error {
	d.dispatch(o.CustomerEmail,
		fmt.Sprintf("Order %s is ready", o.Number),
		fmt.Sprintf("Hi %s, your order %s is ready for pickup.", o.CustomerName, o.Number),
	)
	return nil
}

func (d *Dispatcher) ItemRefunded(ctx context.Context, o *order.Order, itemID string) error {
	name := "an item"
	if idx := o.ItemByID(itemID); idx >= 0 {
		name = o.Items[idx].Name
	}
	d.dispatch(o.CustomerEmail,
		fmt.Sprintf("Refund issued for order %s", o.Number),
		fmt.Sprintf("Hi %s, %s on order %s was refunded.", o.CustomerName, name, o.Number),
	)
	return nil
}

func (d *Dispatcher) OrderRefunded(ctx context.Context, o *order.Order) error {
	d.dispatch(o.CustomerEmail,
		fmt.Sprintf("Order %s refunded", o.Number),
		fmt.Sprintf("Hi %s, your order %s was refunded in full.", o.CustomerName, o.Number),
	)
	return nil
}

func (d *Dispatcher) dispatch(to, subject, body string) {
	if to == "" {
		return
	}
	go func() {
		// Detached from the request context on purpose: the mutation that
		// triggered this already committed.
		if err := d.sender.Send(context.Background(), to, subject, body); err != nil {
			logger.L().Warn("notification delivery failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}()
}

// LogSender is the development Sender: it only logs the message.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	logger.FromCtx(ctx).Info("notification",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
