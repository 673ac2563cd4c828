package domain

import "time"

// OrderStatus tracks the overall order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether the value is a known order status.
func ValidOrderStatus(value OrderStatus) bool {
	switch value {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ShippingStatus tracks physical fulfilment independently of the order
// lifecycle.
type ShippingStatus string

const (
	ShippingStatusPending   ShippingStatus = "pending"
	ShippingStatusPreparing ShippingStatus = "preparing"
	ShippingStatusShipped   ShippingStatus = "shipped"
	ShippingStatusInTransit ShippingStatus = "in_transit"
	ShippingStatusDelivered ShippingStatus = "delivered"
	ShippingStatusReturned  ShippingStatus = "returned"
)

// ValidShippingStatus reports whether the value is a known shipping status.
func ValidShippingStatus(value ShippingStatus) bool {
	switch value {
	case ShippingStatusPending, ShippingStatusPreparing, ShippingStatusShipped,
		ShippingStatusInTransit, ShippingStatusDelivered, ShippingStatusReturned:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks settlement independently of the order lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// ValidPaymentStatus reports whether the value is a known payment status.
func ValidPaymentStatus(value PaymentStatus) bool {
	switch value {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod enumerates the tender types accepted at checkout.
type PaymentMethod string

const (
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodVirtualAccount PaymentMethod = "virtual_account"
	PaymentMethodKakaoPay       PaymentMethod = "kakao_pay"
	PaymentMethodNaverPay       PaymentMethod = "naver_pay"
)

// ValidPaymentMethod reports whether the value is a known payment method.
func ValidPaymentMethod(value PaymentMethod) bool {
	switch value {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodVirtualAccount,
		PaymentMethodKakaoPay, PaymentMethodNaverPay:
		return true
	default:
		return false
	}
}

// OrderItem is an immutable line snapshot taken from the catalog at
// order creation time.
type OrderItem struct {
	ProductID string
	Name      string
	Price     int64
	Quantity  int
	Size      Size
	ImageURL  string
}

// Order is a placed order. OrderNumber follows ORD-YYYYMMDD-NNNN where
// NNNN is a per-day sequence. ImpUID and MerchantUID reference the
// payment gateway transaction when the order was paid online.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Items           []OrderItem
	TotalAmount     int64
	Status          OrderStatus
	ShippingStatus  ShippingStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   PaymentMethod
	ShippingAddress string
	RecipientName   string
	RecipientPhone  string
	Memo            string
	ImpUID          string
	MerchantUID     string

	// TrackingNumber and EstimatedDeliveryDate are set by the console once
	// the parcel is handed to a carrier.
	TrackingNumber        string
	EstimatedDeliveryDate *time.Time

	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
