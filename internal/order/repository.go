package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"umari-core/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error)
	ListOrdersByMerchant(ctx context.Context, merchantAccountID string) ([]*Order, error)

	// UpdateOrder persists the item list, both statuses and the bumped
	// timestamp as one write, guarded by the order's revision. It returns
	// ErrVersionConflict when a concurrent writer won.
	UpdateOrder(ctx context.Context, o *Order) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	id, order_number, merchant_account_id, menu_id, payment_intent_id,
	customer_name, customer_email, customer_phone,
	items, subtotal, platform_fee, total,
	payment_status, status, revision, created_at, updated_at
`

func (r *repository) CreateOrder(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, order_number, merchant_account_id, menu_id, payment_intent_id,
			customer_name, customer_email, customer_phone,
			items, subtotal, platform_fee, total,
			payment_status, status, revision, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		o.ID,
		o.Number,
		o.MerchantAccountID,
		o.MenuID,
		o.PaymentIntentID,
		o.CustomerName,
		o.CustomerEmail,
		o.CustomerPhone,
		items,
		o.Subtotal,
		o.PlatformFee,
		o.Total,
		o.PaymentStatus,
		o.Status,
		o.Revision,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to insert order",
			zap.String("order_id", o.ID.String()),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (r *repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *repository) GetOrderByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, number)
}

func (r *repository) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, paymentIntentID)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	var (
		o     Order
		items []byte
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID,
		&o.Number,
		&o.MerchantAccountID,
		&o.MenuID,
		&o.PaymentIntentID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&items,
		&o.Subtotal,
		&o.PlatformFee,
		&o.Total,
		&o.PaymentStatus,
		&o.Status,
		&o.Revision,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}

	return &o, nil
}

func (r *repository) ListOrdersByMerchant(ctx context.Context, merchantAccountID string) ([]*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "ListOrdersByMerchant"),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE merchant_account_id = $1
		ORDER BY created_at ASC
	`, merchantAccountID)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var (
			o     Order
			items []byte
		)
		if err := rows.Scan(
			&o.ID,
			&o.Number,
			&o.MerchantAccountID,
			&o.MenuID,
			&o.PaymentIntentID,
			&o.CustomerName,
			&o.CustomerEmail,
			&o.CustomerPhone,
			&items,
			&o.Subtotal,
			&o.PlatformFee,
			&o.Total,
			&o.PaymentStatus,
			&o.Status,
			&o.Revision,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items: %w", err)
		}
		orders = append(orders, &o)
	}

	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return orders, nil
}

// UpdateOrder writes the mutable part of the record in one statement with a
// compare-and-swap on revision. RowsAffected tells the two apart: zero rows
// means another writer bumped the revision first.
func (r *repository) UpdateOrder(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET items = $1,
		    status = $2,
		    payment_status = $3,
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $4
		  AND revision = $5
	`,
		items,
		o.Status,
		o.PaymentStatus,
		o.ID,
		o.Revision,
	)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to update order",
			zap.String("order_id", o.ID.String()),
			zap.Int64("revision", o.Revision),
			zap.Error(err),
		)
		return err
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrVersionConflict
	}

	o.Revision++
	return nil
}
