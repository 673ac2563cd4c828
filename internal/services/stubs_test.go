package services

import (
	"context"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/payments"
	"github.com/stitchfield/api/internal/repositories"
)

// stubRepoError implements repositories.RepositoryError for tests.
type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string {
	switch {
	case e.notFound:
		return "stub: not found"
	case e.conflict:
		return "stub: conflict"
	case e.unavailable:
		return "stub: unavailable"
	default:
		return "stub: repository error"
	}
}

func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errStubNotFound = stubRepoError{notFound: true}
	errStubConflict = stubRepoError{conflict: true}
)

type stubProductRepository struct {
	insertFn    func(context.Context, domain.Product) error
	updateFn    func(context.Context, domain.Product) error
	deleteFn    func(context.Context, string) error
	findByIDFn  func(context.Context, string) (domain.Product, error)
	findBySKUFn func(context.Context, string) (domain.Product, error)
	listFn      func(context.Context, repositories.ProductListFilter) (domain.Page[domain.Product], error)

	inserted []domain.Product
	updated  []domain.Product
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	s.inserted = append(s.inserted, product)
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	s.updated = append(s.updated, product)
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Delete(ctx context.Context, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID)
	}
	return nil
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, productID)
	}
	return domain.Product{}, errStubNotFound
}

func (s *stubProductRepository) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if s.findBySKUFn != nil {
		return s.findBySKUFn(ctx, sku)
	}
	return domain.Product{}, errStubNotFound
}

func (s *stubProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Product]{Items: []domain.Product{}}, nil
}

type stubUserRepository struct {
	insertFn      func(context.Context, domain.User) error
	updateFn      func(context.Context, domain.User) error
	findByIDFn    func(context.Context, string) (domain.User, error)
	findByEmailFn func(context.Context, string) (domain.User, error)

	inserted []domain.User
}

func (s *stubUserRepository) Insert(ctx context.Context, user domain.User) error {
	s.inserted = append(s.inserted, user)
	if s.insertFn != nil {
		return s.insertFn(ctx, user)
	}
	return nil
}

func (s *stubUserRepository) Update(ctx context.Context, user domain.User) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, user)
	}
	return nil
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, userID)
	}
	return domain.User{}, errStubNotFound
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if s.findByEmailFn != nil {
		return s.findByEmailFn(ctx, email)
	}
	return domain.User{}, errStubNotFound
}

type stubCartRepository struct {
	getFn   func(context.Context, string) (domain.Cart, error)
	saveFn  func(context.Context, domain.Cart) (domain.Cart, error)
	clearFn func(context.Context, string, time.Time) error

	saved      []domain.Cart
	clearCalls []string
}

func (s *stubCartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.Cart{}, errStubNotFound
}

func (s *stubCartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	s.saved = append(s.saved, cart)
	if s.saveFn != nil {
		return s.saveFn(ctx, cart)
	}
	return cart, nil
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	s.clearCalls = append(s.clearCalls, userID)
	if s.clearFn != nil {
		return s.clearFn(ctx, userID, now)
	}
	return nil
}

type stubOrderRepository struct {
	insertFn            func(context.Context, domain.Order) error
	updateFn            func(context.Context, domain.Order) error
	deleteFn            func(context.Context, string) error
	findByIDFn          func(context.Context, string) (domain.Order, error)
	findByMerchantUIDFn func(context.Context, string) (domain.Order, error)
	listFn              func(context.Context, repositories.OrderListFilter) (domain.Page[domain.Order], error)

	inserted []domain.Order
	updated  []domain.Order
	deleted  []string
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	s.inserted = append(s.inserted, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	s.updated = append(s.updated, order)
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Delete(ctx context.Context, orderID string) error {
	s.deleted = append(s.deleted, orderID)
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, errStubNotFound
}

func (s *stubOrderRepository) FindByMerchantUID(ctx context.Context, merchantUID string) (domain.Order, error) {
	if s.findByMerchantUIDFn != nil {
		return s.findByMerchantUIDFn(ctx, merchantUID)
	}
	return domain.Order{}, errStubNotFound
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Order]{Items: []domain.Order{}}, nil
}

// stubCartService backs order service tests without pulling in the real cart stack.
type stubCartService struct {
	getCartFn func(context.Context, string) (Cart, error)
	clearFn   func(context.Context, string) error

	clearCalls []string
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s.getCartFn != nil {
		return s.getCartFn(ctx, userID)
	}
	return Cart{UserID: userID, Items: []CartItem{}}, nil
}

func (s *stubCartService) AddItem(context.Context, AddCartItemCommand) (Cart, error) {
	return Cart{}, nil
}

func (s *stubCartService) UpdateItemQuantity(context.Context, UpdateCartItemCommand) (Cart, error) {
	return Cart{}, nil
}

func (s *stubCartService) RemoveItem(context.Context, string, string) (Cart, error) {
	return Cart{}, nil
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	s.clearCalls = append(s.clearCalls, userID)
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

type stubCounters struct {
	nextOrderNumberFn func(context.Context) (string, error)

	orderNumberCalls int
}

func (s *stubCounters) Next(context.Context, string, string, CounterGenerationOptions) (CounterValue, error) {
	return CounterValue{}, nil
}

func (s *stubCounters) NextOrderNumber(ctx context.Context) (string, error) {
	s.orderNumberCalls++
	if s.nextOrderNumberFn != nil {
		return s.nextOrderNumberFn(ctx)
	}
	return "ORD-20250102-0001", nil
}

type stubVerifier struct {
	lookupFn func(context.Context, string) (payments.Verification, error)

	lookups []string
}

func (s *stubVerifier) Lookup(ctx context.Context, impUID string) (payments.Verification, error) {
	s.lookups = append(s.lookups, impUID)
	if s.lookupFn != nil {
		return s.lookupFn(ctx, impUID)
	}
	return payments.Verification{}, payments.ErrPaymentNotFound
}

type stubEventPublisher struct {
	publishFn func(context.Context, OrderEventMessage) error

	events []OrderEventMessage
}

func (s *stubEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEventMessage) error {
	s.events = append(s.events, event)
	if s.publishFn != nil {
		return s.publishFn(ctx, event)
	}
	return nil
}
