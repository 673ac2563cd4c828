package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stitchfield/api/internal/platform/auth"
	"github.com/stitchfield/api/internal/platform/httpx"
	"github.com/stitchfield/api/internal/platform/pagination"
	"github.com/stitchfield/api/internal/services"
)

// OrderHandlers exposes checkout and order management endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService

	checkoutMiddlewares []func(http.Handler) http.Handler
}

// OrderOption customises OrderHandlers construction.
type OrderOption func(*OrderHandlers)

// WithCheckoutMiddlewares wraps the checkout endpoint, typically with an
// idempotency key middleware.
func WithCheckoutMiddlewares(mw ...func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.checkoutMiddlewares = append(h.checkoutMiddlewares, mw...)
	}
}

// NewOrderHandlers constructs handlers over the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the customer /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Group(func(checkout chi.Router) {
		for _, mw := range h.checkoutMiddlewares {
			if mw != nil {
				checkout.Use(mw)
			}
		}
		checkout.Post("/", h.create)
	})
	r.Get("/my", h.listMine)
	r.Get("/{orderID}", h.get)

	// Console operations live on the same resource paths, gated by role.
	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		admin.Get("/", h.list)
		admin.Put("/{orderID}/status", h.updateStatus)
		admin.Delete("/{orderID}", h.delete)
	})
}

// AdminRoutes wires the console order endpoints. Callers are expected to
// mount these behind admin authentication.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Put("/{orderID}/status", h.updateStatus)
	r.Delete("/{orderID}", h.delete)
}

type createOrderRequest struct {
	PaymentMethod   string `json:"paymentMethod"`
	ShippingAddress string `json:"shippingAddress"`
	RecipientName   string `json:"recipientName"`
	RecipientPhone  string `json:"recipientPhone"`
	Memo            string `json:"memo"`
	ImpUID          string `json:"impUid"`
	MerchantUID     string `json:"merchantUid"`
	ClearCart       *bool  `json:"clearCart"`
}

func (h *OrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:          uid,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		RecipientName:   req.RecipientName,
		RecipientPhone:  req.RecipientPhone,
		Memo:            req.Memo,
		ImpUID:          req.ImpUID,
		MerchantUID:     req.MerchantUID,
		ClearCart:       req.ClearCart,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	page, err := h.orders.ListMyOrders(ctx, uid, trimmedQuery(r, "status"), params.Page, params.Limit)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteList(w, http.StatusOK, buildOrderPayloads(page.Items), httpx.NewPagination(params.Page, params.Limit, page.TotalCount))
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		UserID:         trimmedQuery(r, "userId"),
		Status:         trimmedQuery(r, "status"),
		PaymentStatus:  trimmedQuery(r, "paymentStatus"),
		ShippingStatus: trimmedQuery(r, "shippingStatus"),
		Page:           params.Page,
		Limit:          params.Limit,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteList(w, http.StatusOK, buildOrderPayloads(page.Items), httpx.NewPagination(params.Page, params.Limit, page.TotalCount))
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  uid,
		IsAdmin: identity.IsAdmin(),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildOrderPayload(order))
}

type updateOrderStatusRequest struct {
	Status                *string `json:"status"`
	ShippingStatus        *string `json:"shippingStatus"`
	PaymentStatus         *string `json:"paymentStatus"`
	TrackingNumber        *string `json:"trackingNumber"`
	EstimatedDeliveryDate *string `json:"estimatedDeliveryDate"`
}

// parseDeliveryDate accepts RFC 3339 timestamps or bare dates.
func parseDeliveryDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", value)
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	cmd := services.UpdateOrderStatusCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		Status:         req.Status,
		ShippingStatus: req.ShippingStatus,
		PaymentStatus:  req.PaymentStatus,
		TrackingNumber: req.TrackingNumber,
	}
	if req.EstimatedDeliveryDate != nil {
		estimated, err := parseDeliveryDate(*req.EstimatedDeliveryDate)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "estimatedDeliveryDate must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		cmd.EstimatedDeliveryDate = &estimated
	}

	order, err := h.orders.UpdateStatus(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "order deleted", nil)
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var dup *services.DuplicateOrderError
	if errors.As(err, &dup) {
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_order", "payment reference already used", http.StatusConflict).
			WithDetails(map[string]any{
				"existingOrderId": dup.Existing.ID,
				"orderNumber":     dup.Existing.OrderNumber,
				"data":            buildOrderPayload(dup.Existing),
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderDuplicate):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_order", "payment reference already used", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentNotCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_completed", "payment has not been completed", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentAmountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("payment_amount_mismatch", "paid amount does not match the order total", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentMerchantMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("payment_reference_mismatch", "payment reference does not match", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentVerificationUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_verification_unavailable", "payment gateway could not be reached", http.StatusBadGateway))
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "something went wrong", http.StatusInternalServerError))
	}
}
