package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"umari-core/internal/logger"
	"umari-core/internal/order"
	"umari-core/internal/payment"

	"go.uber.org/zap"
)

const maxPayloadBytes = 64 * 1024

// Reconciler is the slice of the order service the webhook needs.
type Reconciler interface {
	MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) error
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) error
	ApplyChargeRefunded(ctx context.Context, paymentIntentID string) (*order.RefundResult, error)
}

type Handler struct {
	Orders  Reconciler
	Gateway payment.Gateway
}

func NewWebhookHandler(orders Reconciler, gateway payment.Gateway) *Handler {
	return &Handler{
		Orders:  orders,
		Gateway: gateway,
	}
}

// WebhookHandler is the actual route handler. The signature check comes
// before any lookup: an unverifiable payload is rejected outright.
func (h *Handler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event, err := h.Gateway.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn("webhook rejected", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	log.Info("webhook received",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)

	switch event.Type {
	case payment.EventPaymentSucceeded:
		err = h.Orders.MarkPaymentSucceeded(r.Context(), event.PaymentIntentID)
	case payment.EventPaymentFailed:
		err = h.Orders.MarkPaymentFailed(r.Context(), event.PaymentIntentID)
	case payment.EventChargeRefunded:
		_, err = h.Orders.ApplyChargeRefunded(r.Context(), event.PaymentIntentID)
	default:
		// Ignore event types we do not reconcile.
		w.WriteHeader(http.StatusOK)
		return
	}

	if errors.Is(err, order.ErrOrderNotFound) {
		// Not ours; acknowledging stops the provider from redelivering.
		log.Warn("webhook for unknown order", zap.String("event_id", event.ID))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		log.Error("failed to reconcile webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		http.Error(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
