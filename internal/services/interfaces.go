package services

import (
	"context"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product            = domain.Product
	ProductCategory    = domain.ProductCategory
	Size               = domain.Size
	User               = domain.User
	UserRole           = domain.UserRole
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	ShippingStatus     = domain.ShippingStatus
	PaymentStatus      = domain.PaymentStatus
	PaymentMethod      = domain.PaymentMethod
	SystemHealthReport = domain.SystemHealthReport
)

// AccountService owns registration, login, and account lookup. Password
// hashes never leave this layer; callers receive Account views.
type AccountService interface {
	Register(ctx context.Context, cmd RegisterCommand) (Account, string, error)
	Login(ctx context.Context, cmd LoginCommand) (Account, string, error)
	GetAccount(ctx context.Context, userID string) (Account, error)
	CheckAccount(ctx context.Context, userID string) (role string, active bool, err error)
}

// CatalogService manages storefront products for public and admin surfaces.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// CartService manages the per-user cart, snapshotting catalog data into items.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderService orchestrates order creation from the cart, reads, status
// transitions, and deletion.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListMyOrders(ctx context.Context, userID, status string, page, limit int) (domain.Page[Order], error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.Page[Order], error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// CounterService hands out formatted sequence numbers backed by transactional counters.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// SystemService aggregates utility endpoints (health checks, readiness).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEventMessage) error
}

// Order event types carried in OrderEventMessage.Type.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status.changed"
	OrderEventDeleted       = "order.deleted"
)

// OrderEventMessage captures metadata for emitted order lifecycle events.
type OrderEventMessage struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	UserID         string    `json:"userId"`
	TotalAmount    int64     `json:"totalAmount"`
	Status         string    `json:"status"`
	ShippingStatus string    `json:"shippingStatus,omitempty"`
	PaymentStatus  string    `json:"paymentStatus,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Command and DTO definitions ------------------------------------------------

// Account is the safe projection of a user returned to transport layers.
type Account struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	Role      UserRole
	CreatedAt time.Time
}

type RegisterCommand struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

type LoginCommand struct {
	Email    string
	Password string
}

type UpsertProductCommand struct {
	Name        string
	Description string
	Price       int64
	Category    string
	Sizes       []string
	SKU         string
	ImageURL    string
	Stock       int
	Active      *bool
}

type ProductListFilter = repositories.ProductListFilter

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Size      string
	Quantity  int
}

type UpdateCartItemCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

// CreateOrderCommand carries checkout input. ImpUID and MerchantUID are only
// set when the client completed an online payment that must be verified.
// A nil ClearCart clears the cart after checkout; clients opt out with false.
type CreateOrderCommand struct {
	UserID          string
	PaymentMethod   string
	ShippingAddress string
	RecipientName   string
	RecipientPhone  string
	Memo            string
	ImpUID          string
	MerchantUID     string
	ClearCart       *bool
}

type OrderListFilter = repositories.OrderListFilter

// GetOrderCommand scopes a single-order read. Admin readers see every order;
// customers only their own.
type GetOrderCommand struct {
	OrderID string
	UserID  string
	IsAdmin bool
}

// UpdateOrderStatusCommand updates any subset of the three status tracks and
// the carrier tracking fields. Nil fields keep their current value.
type UpdateOrderStatusCommand struct {
	OrderID               string
	Status                *string
	ShippingStatus        *string
	PaymentStatus         *string
	TrackingNumber        *string
	EstimatedDeliveryDate *time.Time
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
	Prefix       string
	Suffix       string
	PadLength    int
	Formatter    func(now time.Time, value int64) string
}

// CounterValue bundles the raw sequence value with its formatted rendering.
type CounterValue struct {
	Value     int64
	Formatted string
}
