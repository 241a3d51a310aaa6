package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusReceived  OrderStatus = "received"
	StatusReady     OrderStatus = "ready"
	StatusCancelled OrderStatus = "cancelled"
)

type ItemStatus string

const (
	ItemStatusReceived  ItemStatus = "received"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusCancelled ItemStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// SelectedOption is a menu option chosen for an item, with its price delta
// already resolved at checkout time.
type SelectedOption struct {
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// Item is a single line within an order. Items are created once at order
// creation and never added or removed; only Status and the refund fields
// mutate afterwards.
type Item struct {
	ID             string           `json:"id"`
	MenuItemID     string           `json:"menu_item_id"`
	Name           string           `json:"name"`
	Quantity       int              `json:"quantity"`
	Options        []SelectedOption `json:"options,omitempty"`
	LineTotal      decimal.Decimal  `json:"line_total"`
	Status         ItemStatus       `json:"status,omitempty"`
	RefundedAmount *decimal.Decimal `json:"refunded_amount,omitempty"`
	RefundedAt     *time.Time       `json:"refunded_at,omitempty"`
}

// Refunded reports whether the item has reached its terminal refunded state.
// A refunded item must never leave ItemStatusCancelled.
func (it Item) Refunded() bool {
	return it.RefundedAmount != nil
}

// Order is the aggregate: it owns its item list exclusively. Status is
// always DeriveStatus(Items) except after an explicit whole-order override
// (merchant cancellation or full refund).
type Order struct {
	ID                uuid.UUID
	Number            string
	MerchantAccountID string
	MenuID            string
	PaymentIntentID   string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	Items             []Item
	Subtotal          decimal.Decimal
	PlatformFee       decimal.Decimal
	Total             decimal.Decimal
	PaymentStatus     PaymentStatus
	Status            OrderStatus
	Revision          int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ItemByID returns the index of the item with the given id, or -1.
func (o *Order) ItemByID(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// FullyRefunded reports whether every item carries refund metadata.
func (o *Order) FullyRefunded() bool {
	for i := range o.Items {
		if !o.Items[i].Refunded() {
			return false
		}
	}
	return len(o.Items) > 0
}

// MinorUnits converts a currency amount to the smallest currency unit,
// rounding half-up at the cent. Every amount handed to the payment gateway
// goes through here so rounding can never diverge between call sites.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
