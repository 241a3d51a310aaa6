package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"umari-core/internal/logger"
	"umari-core/internal/payment"
	"umari-core/internal/transport"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxConflictRetries bounds the read-modify-write retries after a revision
// conflict before the failure is surfaced to the caller.
const maxConflictRetries = 3

// platformFeePercent is recorded on the order for merchant reporting. It is
// absorbed by the merchant: the customer total always equals the subtotal.
var platformFeePercent = decimal.NewFromInt(2)

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	ListActiveOrders(ctx context.Context) ([]*Order, error)
	ListReadyOrders(ctx context.Context) ([]*Order, error)

	UpdateItemStatus(ctx context.Context, orderID uuid.UUID, itemID string, status ItemStatus) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error)

	RefundItem(ctx context.Context, orderID uuid.UUID, itemID string) (*RefundResult, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*RefundResult, error)

	MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) error
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) error
	ApplyChargeRefunded(ctx context.Context, paymentIntentID string) (*RefundResult, error)
}

type CreateOrderInput struct {
	MerchantAccountID string
	MenuID            string
	PaymentIntentID   string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	Items             []CreateOrderItem
}

type CreateOrderItem struct {
	MenuItemID string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Options    []SelectedOption
}

// RefundResult tells the caller whether this call did the work or found it
// already done, so a double-click and a webhook race stay distinguishable
// from a first refund.
type RefundResult struct {
	Order         *Order
	Already       bool
	FullyRefunded bool
}

type service struct {
	repo     Repository
	gateway  payment.Gateway
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, gateway payment.Gateway, notifier Notifier) Service {
	return &service{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		now:      time.Now,
	}
}

// ----------------- Creation & lookup -----------------

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreateOrder"),
		zap.Int("item_count", len(input.Items)),
	)

	if len(input.Items) == 0 {
		return nil, errors.New("order has no items")
	}
	if input.PaymentIntentID == "" {
		return nil, errors.New("payment intent is required")
	}

	items := make([]Item, 0, len(input.Items))
	subtotal := decimal.Zero

	for i, in := range input.Items {
		if in.Quantity <= 0 {
			log.Warn("invalid quantity", zap.Int("index", i))
			return nil, errors.New("quantity must be greater than zero")
		}

		unit := in.UnitPrice
		for _, opt := range in.Options {
			unit = unit.Add(opt.PriceDelta)
		}
		lineTotal := unit.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)

		items = append(items, Item{
			ID:         uuid.NewString(),
			MenuItemID: in.MenuItemID,
			Name:       in.Name,
			Quantity:   in.Quantity,
			Options:    in.Options,
			LineTotal:  lineTotal,
			Status:     ItemStatusReceived,
		})
	}

	fee := subtotal.Mul(platformFeePercent).Div(decimal.NewFromInt(100)).Round(2)
	now := s.now()

	o := &Order{
		ID:                uuid.New(),
		Number:            newOrderNumber(),
		MerchantAccountID: input.MerchantAccountID,
		MenuID:            input.MenuID,
		PaymentIntentID:   input.PaymentIntentID,
		CustomerName:      input.CustomerName,
		CustomerEmail:     input.CustomerEmail,
		CustomerPhone:     input.CustomerPhone,
		Items:             items,
		Subtotal:          subtotal,
		PlatformFee:       fee,
		// The fee comes out of the merchant payout, not on top of the
		// customer charge.
		Total:         subtotal,
		PaymentStatus: PaymentStatusPending,
		Status:        DeriveStatus(items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	log.Info("order created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.Number),
		zap.String("total", o.Total.StringFixed(2)),
	)

	return o, nil
}

func newOrderNumber() string {
	return "UM-" + strings.ToUpper(uuid.NewString()[:8])
}

// GetOrderByNumber is the guest lookup path.
func (s *service) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetOrderByNumber(ctx, number)
}

func (s *service) ListActiveOrders(ctx context.Context) ([]*Order, error) {
	return s.listBucket(ctx, IsActive)
}

func (s *service) ListReadyOrders(ctx context.Context) ([]*Order, error) {
	return s.listBucket(ctx, IsReady)
}

func (s *service) listBucket(ctx context.Context, keep func(*Order) bool) ([]*Order, error) {
	merchantID, ok := transport.MerchantAccountFrom(ctx)
	if !ok {
		return nil, ErrOrderNotFound
	}

	orders, err := s.repo.ListOrdersByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	bucket := make([]*Order, 0, len(orders))
	for _, o := range orders {
		if keep(o) {
			bucket = append(bucket, o)
		}
	}
	return bucket, nil
}

// ----------------- Status transitions -----------------

func (s *service) UpdateItemStatus(ctx context.Context, orderID uuid.UUID, itemID string, status ItemStatus) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "UpdateItemStatus"),
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID),
		zap.String("status", string(status)),
	)

	if !validItemStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		o, err := s.loadMerchantOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		idx := o.ItemByID(itemID)
		if idx < 0 {
			return nil, ErrItemNotFound
		}
		if o.Items[idx].Refunded() {
			return nil, ErrAlreadyRefunded
		}

		prev := o.Status
		o.Items[idx].Status = status
		o.Status = DeriveStatus(o.Items)

		if err := s.repo.UpdateOrder(ctx, o); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				log.Debug("revision conflict, retrying", zap.Int("attempt", attempt+1))
				lastErr = err
				continue
			}
			return nil, err
		}

		// Edge-triggered: only the transition into ready notifies, so an
		// idempotent re-application of the same status stays silent.
		if prev != StatusReady && o.Status == StatusReady {
			s.notifyBestEffort(ctx, "order_ready", func() error {
				return s.notifier.OrderReady(ctx, o)
			})
		}

		log.Info("item status updated", zap.String("order_status", string(o.Status)))
		return o, nil
	}

	return nil, lastErr
}

// UpdateOrderStatus is the explicit merchant bulk action: every item that is
// not terminally refunded moves to the given status, and the aggregate is
// re-derived from the result.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error) {
	itemStatus := ItemStatus(status)
	if !validItemStatus(itemStatus) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		o, err := s.loadMerchantOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}

		prev := o.Status
		for i := range o.Items {
			if o.Items[i].Refunded() {
				continue
			}
			o.Items[i].Status = itemStatus
		}
		o.Status = DeriveStatus(o.Items)

		if err := s.repo.UpdateOrder(ctx, o); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		if prev != StatusReady && o.Status == StatusReady {
			s.notifyBestEffort(ctx, "order_ready", func() error {
				return s.notifier.OrderReady(ctx, o)
			})
		}
		return o, nil
	}

	return nil, lastErr
}

func validItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusReceived, ItemStatusReady, ItemStatusCancelled:
		return true
	}
	return false
}

// ----------------- Refunds -----------------

func (s *service) RefundItem(ctx context.Context, orderID uuid.UUID, itemID string) (*RefundResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RefundItem"),
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID),
	)

	o, err := s.loadMerchantOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != PaymentStatusSucceeded {
		return nil, ErrInvalidPaymentState
	}

	idx := o.ItemByID(itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	if o.Items[idx].Refunded() {
		return nil, ErrAlreadyRefunded
	}

	amountMinor := MinorUnits(o.Items[idx].LineTotal)
	key := refundKey(o.ID, itemID)

	// Gateway first. Nothing is persisted until the money has moved.
	conf, err := s.gateway.RefundPartial(ctx, o.PaymentIntentID, amountMinor, key)
	if err != nil {
		log.Error("refund rejected by gateway", zap.Error(err))
		return nil, err
	}

	now := s.now()
	o, applied, err := s.persistRefund(ctx, o, func(o *Order) bool {
		i := o.ItemByID(itemID)
		if i < 0 || o.Items[i].Refunded() {
			return false
		}
		amount := o.Items[i].LineTotal.Round(2)
		o.Items[i].Status = ItemStatusCancelled
		o.Items[i].RefundedAmount = &amount
		o.Items[i].RefundedAt = &now
		o.Status = DeriveStatus(o.Items)
		if o.FullyRefunded() {
			o.PaymentStatus = PaymentStatusRefunded
		}
		return true
	})
	if err != nil {
		log.Error("order update failed after refund settled",
			zap.String("refund_id", conf.RefundID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: refund %s", ErrInconsistentState, conf.RefundID)
	}

	full := o.FullyRefunded()
	if applied {
		// Exactly one notification per refund call: the one that completes
		// the order sends the full-refund message instead of the item one.
		if full {
			s.notifyBestEffort(ctx, "order_refunded", func() error {
				return s.notifier.OrderRefunded(ctx, o)
			})
		} else {
			s.notifyBestEffort(ctx, "item_refunded", func() error {
				return s.notifier.ItemRefunded(ctx, o, itemID)
			})
		}
	}

	log.Info("item refunded",
		zap.String("refund_id", conf.RefundID),
		zap.Bool("fully_refunded", full),
	)

	return &RefundResult{Order: o, Already: !applied, FullyRefunded: full}, nil
}

func (s *service) RefundOrder(ctx context.Context, orderID uuid.UUID) (*RefundResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "RefundOrder"),
		zap.String("order_id", orderID.String()),
	)

	o, err := s.loadMerchantOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus == PaymentStatusRefunded {
		return &RefundResult{Order: o, Already: true, FullyRefunded: true}, nil
	}
	if o.PaymentStatus != PaymentStatusSucceeded {
		return nil, ErrInvalidPaymentState
	}

	key := refundKey(o.ID, "full")
	conf, err := s.gateway.RefundFull(ctx, o.PaymentIntentID, key)
	if err != nil {
		log.Error("full refund rejected by gateway", zap.Error(err))
		return nil, err
	}

	now := s.now()
	o, applied, err := s.persistRefund(ctx, o, func(o *Order) bool {
		if o.PaymentStatus == PaymentStatusRefunded {
			return false
		}
		markOrderRefunded(o, now)
		return true
	})
	if err != nil {
		log.Error("order update failed after refund settled",
			zap.String("refund_id", conf.RefundID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: refund %s", ErrInconsistentState, conf.RefundID)
	}

	if applied {
		s.notifyBestEffort(ctx, "order_refunded", func() error {
			return s.notifier.OrderRefunded(ctx, o)
		})
	}

	log.Info("order refunded", zap.String("refund_id", conf.RefundID), zap.Bool("already", !applied))
	return &RefundResult{Order: o, Already: !applied, FullyRefunded: true}, nil
}

// ----------------- Webhook reconciliation -----------------

func (s *service) MarkPaymentSucceeded(ctx context.Context, paymentIntentID string) error {
	return s.markPayment(ctx, paymentIntentID, PaymentStatusSucceeded)
}

func (s *service) MarkPaymentFailed(ctx context.Context, paymentIntentID string) error {
	return s.markPayment(ctx, paymentIntentID, PaymentStatusFailed)
}

// markPayment is idempotent by construction: re-applying the same value is a
// no-op with no write.
func (s *service) markPayment(ctx context.Context, paymentIntentID string, status PaymentStatus) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		o, err := s.repo.GetOrderByPaymentIntentID(ctx, paymentIntentID)
		if err != nil {
			return err
		}
		if o.PaymentStatus == status || o.PaymentStatus == PaymentStatusRefunded {
			return nil
		}

		o.PaymentStatus = status
		if err := s.repo.UpdateOrder(ctx, o); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}

		logger.FromCtx(ctx).Info("payment status reconciled",
			zap.String("payment_intent_id", paymentIntentID),
			zap.String("payment_status", string(status)),
		)
		return nil
	}
	return lastErr
}

// ApplyChargeRefunded reconciles a provider-initiated full refund. The
// provider reflects settled ground truth, so it wins over any in-flight
// item-level refund state and marks every item cancelled. Redelivery of the
// same event is a no-op with no second notification.
func (s *service) ApplyChargeRefunded(ctx context.Context, paymentIntentID string) (*RefundResult, error) {
	o, err := s.repo.GetOrderByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}

	if o.PaymentStatus == PaymentStatusRefunded {
		return &RefundResult{Order: o, Already: true, FullyRefunded: true}, nil
	}

	now := s.now()
	o, applied, err := s.persistRefund(ctx, o, func(o *Order) bool {
		if o.PaymentStatus == PaymentStatusRefunded {
			return false
		}
		markOrderRefunded(o, now)
		return true
	})
	if err != nil {
		// No gateway call was made here; the provider will redeliver.
		return nil, err
	}

	if applied {
		s.notifyBestEffort(ctx, "order_refunded", func() error {
			return s.notifier.OrderRefunded(ctx, o)
		})
	}

	logger.FromCtx(ctx).Info("charge.refunded reconciled",
		zap.String("payment_intent_id", paymentIntentID),
		zap.Bool("already", !applied),
	)

	return &RefundResult{Order: o, Already: !applied, FullyRefunded: true}, nil
}

// ----------------- Helpers -----------------

// loadMerchantOrder re-verifies ownership on every call; a mismatch reads the
// same as a missing order.
func (s *service) loadMerchantOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	merchantID, ok := transport.MerchantAccountFrom(ctx)
	if !ok || o.MerchantAccountID != merchantID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// persistRefund writes o, retrying a revision conflict by reloading and
// re-applying the mutation. The gateway is never called from here, so a
// retry can never duplicate a refund. apply returns false when the target
// state already holds on the reloaded record.
func (s *service) persistRefund(ctx context.Context, o *Order, apply func(*Order) bool) (*Order, bool, error) {
	if !apply(o) {
		return o, false, nil
	}

	err := s.repo.UpdateOrder(ctx, o)
	for attempt := 1; err != nil && errors.Is(err, ErrVersionConflict) && attempt < maxConflictRetries; attempt++ {
		var reloaded *Order
		reloaded, err = s.repo.GetOrder(ctx, o.ID)
		if err != nil {
			return nil, false, err
		}
		o = reloaded
		if !apply(o) {
			return o, false, nil
		}
		err = s.repo.UpdateOrder(ctx, o)
	}
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// markOrderRefunded is the whole-order terminal override: payment refunded,
// order cancelled, every remaining item stamped with its refund.
func markOrderRefunded(o *Order, now time.Time) {
	for i := range o.Items {
		if o.Items[i].Refunded() {
			continue
		}
		amount := o.Items[i].LineTotal.Round(2)
		o.Items[i].Status = ItemStatusCancelled
		o.Items[i].RefundedAmount = &amount
		o.Items[i].RefundedAt = &now
	}
	o.PaymentStatus = PaymentStatusRefunded
	o.Status = StatusCancelled
}

func refundKey(orderID uuid.UUID, target string) string {
	return fmt.Sprintf("refund:%s:%s", orderID, target)
}

func (s *service) notifyBestEffort(ctx context.Context, name string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		logger.FromCtx(ctx).Warn("notification failed",
			zap.String("notification", name),
			zap.Error(err),
		)
	}
}
