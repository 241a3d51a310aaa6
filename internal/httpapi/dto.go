package httpapi

import "umari-core/internal/order"

type orderItemResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	LineTotal      string `json:"line_total"`
	Status         string `json:"status"`
	RefundedAmount string `json:"refunded_amount,omitempty"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	Number        string              `json:"number"`
	Items         []orderItemResponse `json:"items"`
	Subtotal      string              `json:"subtotal"`
	Total         string              `json:"total"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
}

type guestOrderResponse struct {
	Number string              `json:"number"`
	Items  []orderItemResponse `json:"items"`
	Total  string              `json:"total"`
	Status string              `json:"status"`
}

type refundResponse struct {
	Order         orderResponse `json:"order"`
	Already       bool          `json:"already_refunded"`
	FullyRefunded bool          `json:"fully_refunded"`
}

func toItems(o *order.Order) []orderItemResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		res := orderItemResponse{
			ID:        it.ID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal.StringFixed(2),
			Status:    string(order.EffectiveItemStatus(it, o.Status)),
		}
		if it.RefundedAmount != nil {
			res.RefundedAmount = it.RefundedAmount.StringFixed(2)
		}
		items = append(items, res)
	}
	return items
}

func toOrder(o *order.Order) orderResponse {
	return orderResponse{
		ID:            o.ID.String(),
		Number:        o.Number,
		Items:         toItems(o),
		Subtotal:      o.Subtotal.StringFixed(2),
		Total:         o.Total.StringFixed(2),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
	}
}

func toOrderList(orders []*order.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}

func toGuestOrder(o *order.Order) guestOrderResponse {
	return guestOrderResponse{
		Number: o.Number,
		Items:  toItems(o),
		Total:  o.Total.StringFixed(2),
		Status: string(o.Status),
	}
}

func toRefundResponse(res *order.RefundResult) refundResponse {
	return refundResponse{
		Order:         toOrder(res.Order),
		Already:       res.Already,
		FullyRefunded: res.FullyRefunded,
	}
}
