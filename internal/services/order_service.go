package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/payments"
	"github.com/stitchfield/api/internal/repositories"
)

const orderIDPrefix = "ord_"

var (
	// ErrOrderInvalidInput signals the caller provided invalid checkout data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or is not
	// visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderDuplicate indicates the payment reference already belongs to an
	// existing order.
	ErrOrderDuplicate = errors.New("order: duplicate")
	// ErrOrderInvalidState indicates an unknown status value was supplied.
	ErrOrderInvalidState = errors.New("order: invalid status")

	// ErrPaymentNotCompleted indicates the gateway does not report the
	// transaction as paid.
	ErrPaymentNotCompleted = errors.New("order: payment not completed")
	// ErrPaymentAmountMismatch indicates the paid amount differs from the
	// order total.
	ErrPaymentAmountMismatch = errors.New("order: payment amount mismatch")
	// ErrPaymentMerchantMismatch indicates the gateway's merchant_uid differs
	// from the one the client supplied.
	ErrPaymentMerchantMismatch = errors.New("order: payment merchant mismatch")
	// ErrPaymentVerificationUnavailable indicates the gateway could not be
	// consulted and the service refuses to trust the client.
	ErrPaymentVerificationUnavailable = errors.New("order: payment verification unavailable")
)

// DuplicateOrderError carries the already-persisted order so transports can
// return it alongside the conflict. It matches errors.Is(err, ErrOrderDuplicate).
type DuplicateOrderError struct {
	Existing Order
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("order: duplicate of %s", e.Existing.ID)
}

func (e *DuplicateOrderError) Unwrap() error {
	return ErrOrderDuplicate
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Cart        CartService
	Counters    CounterService
	Verifier    payments.Verifier
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)

	// FailOpen lets order creation proceed when the payment gateway cannot be
	// reached instead of failing the request.
	FailOpen bool
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	cart     CartService
	counters CounterService
	verifier payments.Verifier
	events   OrderEventPublisher
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
	failOpen bool
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Cart == nil {
		return nil, errors.New("order service: cart service is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		products: deps.Products,
		cart:     deps.Cart,
		counters: deps.Counters,
		verifier: deps.Verifier,
		events:   deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		logger:   logger,
		failOpen: deps.FailOpen,
	}, nil
}

// CreateOrder turns the user's cart into an order. Payment references, when
// present, are verified against the gateway before anything is persisted, and
// the cart is cleared only after the order is stored.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	method := domain.PaymentMethod(strings.TrimSpace(cmd.PaymentMethod))
	if !domain.ValidPaymentMethod(method) {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	address := strings.TrimSpace(cmd.ShippingAddress)
	if address == "" {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	recipient := strings.TrimSpace(cmd.RecipientName)
	if recipient == "" {
		return Order{}, fmt.Errorf("%w: recipient name is required", ErrOrderInvalidInput)
	}
	phone := strings.TrimSpace(cmd.RecipientPhone)
	if phone == "" {
		return Order{}, fmt.Errorf("%w: recipient phone is required", ErrOrderInvalidInput)
	}
	impUID := strings.TrimSpace(cmd.ImpUID)
	merchantUID := strings.TrimSpace(cmd.MerchantUID)
	if (impUID == "") != (merchantUID == "") {
		return Order{}, fmt.Errorf("%w: impUid and merchantUid must be supplied together", ErrOrderInvalidInput)
	}

	cart, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return Order{}, err
	}
	if len(cart.Items) == 0 {
		return Order{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	items, total, err := s.buildOrderItems(ctx, cart.Items)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	order := Order{
		ID:              orderIDPrefix + s.newID(),
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		Status:          domain.OrderStatusPending,
		ShippingStatus:  domain.ShippingStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   method,
		ShippingAddress: address,
		RecipientName:   recipient,
		RecipientPhone:  phone,
		Memo:            strings.TrimSpace(cmd.Memo),
		ImpUID:          impUID,
		MerchantUID:     merchantUID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if impUID != "" {
		// A retried checkout must short-circuit before the gateway is
		// consulted: the stored order is the answer even when the gateway
		// is down, and no counter sequence should be burned for it.
		if existing, found := s.findExistingByPaymentRef(ctx, merchantUID); found {
			return Order{}, &DuplicateOrderError{Existing: existing}
		}
		if err := s.applyPaymentVerification(ctx, &order, now); err != nil {
			return Order{}, err
		}
	}

	number, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapInsertError(ctx, merchantUID, err)
	}

	// The order is durable; a cart that fails to clear is an annoyance, not a
	// reason to roll back.
	if cmd.ClearCart == nil || *cmd.ClearCart {
		if err := s.cart.ClearCart(ctx, userID); err != nil {
			s.logger(ctx, "order.cart.clear.failed", map[string]any{
				"order": order.ID,
				"user":  userID,
				"error": err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:          OrderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		OccurredAt:    now,
	})

	return order, nil
}

// buildOrderItems re-reads every product so the order carries current catalog
// prices rather than whatever the cart snapshotted when the item was added.
func (s *orderService) buildOrderItems(ctx context.Context, cartItems []CartItem) ([]OrderItem, int64, error) {
	items := make([]OrderItem, 0, len(cartItems))
	var total int64
	for _, item := range cartItems {
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if errors.As(err, &repoErr) && repoErr.IsNotFound() {
				return nil, 0, fmt.Errorf("%w: product %s no longer available", ErrOrderInvalidInput, item.ProductID)
			}
			return nil, 0, err
		}
		if !product.Active {
			return nil, 0, fmt.Errorf("%w: product %s no longer available", ErrOrderInvalidInput, item.ProductID)
		}
		items = append(items, OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			ImageURL:  product.ImageURL,
		})
		total += product.Price * int64(item.Quantity)
	}
	return items, total, nil
}

// applyPaymentVerification cross-checks the client-supplied payment references
// against the gateway and stamps the payment outcome onto the order.
func (s *orderService) applyPaymentVerification(ctx context.Context, order *Order, now time.Time) error {
	if s.verifier == nil {
		if s.failOpen {
			s.degradeOpen(ctx, order, now, "verifier not configured")
			return nil
		}
		return fmt.Errorf("%w: verifier not configured", ErrPaymentVerificationUnavailable)
	}

	verification, err := s.verifier.Lookup(ctx, order.ImpUID)
	switch {
	case err == nil:
		// verified below
	case errors.Is(err, payments.ErrPaymentNotFound):
		return fmt.Errorf("%w: gateway has no record of %s", ErrPaymentNotCompleted, order.ImpUID)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		if s.failOpen {
			s.degradeOpen(ctx, order, now, err.Error())
			return nil
		}
		return fmt.Errorf("%w: %v", ErrPaymentVerificationUnavailable, err)
	default:
		return err
	}

	if verification.Status != payments.StatusPaid {
		return fmt.Errorf("%w: gateway status %s", ErrPaymentNotCompleted, verification.Status)
	}
	if verification.MerchantUID != order.MerchantUID {
		return fmt.Errorf("%w: gateway reports %s", ErrPaymentMerchantMismatch, verification.MerchantUID)
	}
	if verification.Amount != order.TotalAmount {
		return fmt.Errorf("%w: paid %d, order total %d", ErrPaymentAmountMismatch, verification.Amount, order.TotalAmount)
	}

	order.Status = domain.OrderStatusConfirmed
	order.PaymentStatus = domain.PaymentStatusCompleted
	paidAt := now
	if verification.PaidAt != nil {
		paidAt = verification.PaidAt.UTC()
	}
	order.PaidAt = &paidAt
	return nil
}

// degradeOpen accepts the client's word for the payment when the gateway is
// unreachable and the service is configured to degrade open.
func (s *orderService) degradeOpen(ctx context.Context, order *Order, now time.Time, reason string) {
	s.logger(ctx, "order.payment.verification.degraded", map[string]any{
		"impUid":      order.ImpUID,
		"merchantUid": order.MerchantUID,
		"reason":      reason,
	})
	order.Status = domain.OrderStatusConfirmed
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.PaidAt = &now
}

// findExistingByPaymentRef looks up the order already holding the merchant
// reference, if any. Lookup failures other than not-found fall through to the
// transactional reservation, which stays the authoritative duplicate guard.
func (s *orderService) findExistingByPaymentRef(ctx context.Context, merchantUID string) (Order, bool) {
	if merchantUID == "" {
		return Order{}, false
	}
	existing, err := s.orders.FindByMerchantUID(ctx, merchantUID)
	if err == nil {
		return existing, true
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		s.logger(ctx, "order.duplicate.precheck.failed", map[string]any{
			"merchantUid": merchantUID,
			"error":       err.Error(),
		})
	}
	return Order{}, false
}

// mapInsertError turns a reservation conflict into a DuplicateOrderError that
// carries the order already holding the payment reference.
func (s *orderService) mapInsertError(ctx context.Context, merchantUID string, err error) error {
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		return err
	}
	if merchantUID != "" {
		existing, lookupErr := s.orders.FindByMerchantUID(ctx, merchantUID)
		if lookupErr == nil {
			return &DuplicateOrderError{Existing: existing}
		}
		s.logger(ctx, "order.duplicate.lookup.failed", map[string]any{
			"merchantUid": merchantUID,
			"error":       lookupErr.Error(),
		})
	}
	return fmt.Errorf("%w: %v", ErrOrderDuplicate, err)
}

func (s *orderService) ListMyOrders(ctx context.Context, userID, status string, page, limit int) (domain.Page[Order], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Page[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if v := strings.TrimSpace(status); v != "" && !domain.ValidOrderStatus(domain.OrderStatus(v)) {
		return domain.Page[Order]{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, v)
	}
	return s.orders.List(ctx, OrderListFilter{UserID: uid, Status: strings.TrimSpace(status), Page: page, Limit: limit})
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error) {
	if v := strings.TrimSpace(filter.Status); v != "" && !domain.ValidOrderStatus(domain.OrderStatus(v)) {
		return domain.Page[Order]{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, v)
	}
	if v := strings.TrimSpace(filter.PaymentStatus); v != "" && !domain.ValidPaymentStatus(domain.PaymentStatus(v)) {
		return domain.Page[Order]{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, v)
	}
	if v := strings.TrimSpace(filter.ShippingStatus); v != "" && !domain.ValidShippingStatus(domain.ShippingStatus(v)) {
		return domain.Page[Order]{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, v)
	}
	return s.orders.List(ctx, filter)
}

// GetOrder loads a single order. Customers asking for someone else's order get
// a not-found, never a hint that the order exists.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(id, err)
	}
	if !cmd.IsAdmin && order.UserID != strings.TrimSpace(cmd.UserID) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return order, nil
}

// UpdateStatus applies any subset of the three status tracks and stamps the
// derived timestamps the first time a milestone is reached.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if cmd.Status == nil && cmd.ShippingStatus == nil && cmd.PaymentStatus == nil &&
		cmd.TrackingNumber == nil && cmd.EstimatedDeliveryDate == nil {
		return Order{}, fmt.Errorf("%w: at least one status field is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(id, err)
	}

	now := s.clock()

	if cmd.Status != nil {
		status := domain.OrderStatus(strings.TrimSpace(*cmd.Status))
		if !domain.ValidOrderStatus(status) {
			return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, *cmd.Status)
		}
		order.Status = status
		switch status {
		case domain.OrderStatusShipped:
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
		case domain.OrderStatusDelivered:
			order.ShippingStatus = domain.ShippingStatusDelivered
			if order.DeliveredAt == nil {
				order.DeliveredAt = &now
			}
		}
	}
	if cmd.ShippingStatus != nil {
		status := domain.ShippingStatus(strings.TrimSpace(*cmd.ShippingStatus))
		if !domain.ValidShippingStatus(status) {
			return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, *cmd.ShippingStatus)
		}
		order.ShippingStatus = status
		switch status {
		case domain.ShippingStatusShipped, domain.ShippingStatusInTransit:
			if order.ShippedAt == nil {
				order.ShippedAt = &now
			}
		case domain.ShippingStatusDelivered:
			if order.DeliveredAt == nil {
				order.DeliveredAt = &now
			}
		}
	}
	if cmd.PaymentStatus != nil {
		status := domain.PaymentStatus(strings.TrimSpace(*cmd.PaymentStatus))
		if !domain.ValidPaymentStatus(status) {
			return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidState, *cmd.PaymentStatus)
		}
		order.PaymentStatus = status
		if status == domain.PaymentStatusCompleted && order.PaidAt == nil {
			order.PaidAt = &now
		}
	}
	if cmd.TrackingNumber != nil {
		order.TrackingNumber = strings.TrimSpace(*cmd.TrackingNumber)
	}
	if cmd.EstimatedDeliveryDate != nil {
		estimated := cmd.EstimatedDeliveryDate.UTC()
		order.EstimatedDeliveryDate = &estimated
	}

	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(id, err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:           OrderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		ShippingStatus: string(order.ShippingStatus),
		PaymentStatus:  string(order.PaymentStatus),
		OccurredAt:     now,
	})

	return order, nil
}

// DeleteOrder removes the order and releases its payment-reference
// reservations so a retried checkout could reuse them.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return s.mapRepositoryError(id, err)
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(id, err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:        OrderEventDeleted,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		OccurredAt:  s.clock(),
	})
	return nil
}

func (s *orderService) mapRepositoryError(ref string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
	}
	return err
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}
