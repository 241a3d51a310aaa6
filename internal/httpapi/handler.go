package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"umari-core/internal/logger"
	"umari-core/internal/order"
	"umari-core/internal/payment"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the merchant operations and the guest lookup as thin JSON
// routes. All reconciliation rules live in the order service.
type Handler struct {
	Orders order.Service
}

func NewHandler(orders order.Service) *Handler {
	return &Handler{Orders: orders}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// GetOrderByNumber is the guest lookup. It never exposes internal error
// detail: either the order, "not found", or a generic failure.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	o, err := h.Orders.GetOrderByNumber(r.Context(), number)
	if errors.Is(err, order.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Error("guest lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, toGuestOrder(o))
}

func (h *Handler) ListActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListActiveOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders))
}

func (h *Handler) ListReadyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListReadyOrders(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders))
}

func (h *Handler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	itemID := chi.URLParam(r, "itemID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	o, err := h.Orders.UpdateItemStatus(r.Context(), orderID, itemID, order.ItemStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	o, err := h.Orders.UpdateOrderStatus(r.Context(), orderID, order.OrderStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) RefundItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	itemID := chi.URLParam(r, "itemID")

	res, err := h.Orders.RefundItem(r.Context(), orderID, itemID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundResponse(res))
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	res, err := h.Orders.RefundOrder(r.Context(), orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundResponse(res))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var gatewayErr *payment.GatewayError

	switch {
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, order.ErrAlreadyRefunded):
		writeError(w, http.StatusConflict, "already refunded")
	case errors.Is(err, order.ErrInvalidPaymentState):
		writeError(w, http.StatusConflict, "payment is not in a refundable state")
	case errors.Is(err, order.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid status")
	case errors.Is(err, order.ErrVersionConflict):
		writeError(w, http.StatusConflict, "order was modified concurrently, please retry")
	case errors.Is(err, order.ErrInconsistentState):
		logger.FromCtx(r.Context()).Error("inconsistent refund state", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "refund issued but the order could not be updated; support has been alerted")
	case errors.As(err, &gatewayErr):
		logger.FromCtx(r.Context()).Error("payment gateway failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment provider is unavailable, please retry")
	default:
		logger.FromCtx(r.Context()).Error("unhandled service error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
