package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/platform/auth"
	"github.com/stitchfield/api/internal/services"
)

func requestWithIdentity(r *http.Request, identity *auth.Identity) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), identity))
}

func customerIdentity() *auth.Identity {
	return &auth.Identity{UID: "usr_1", Email: "shopper@example.com", Role: auth.RoleCustomer}
}

func adminIdentity() *auth.Identity {
	return &auth.Identity{UID: "usr_admin", Email: "ops@example.com", Role: auth.RoleAdmin}
}

func doRequest(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

type stubAccountService struct {
	registerFn func(context.Context, services.RegisterCommand) (services.Account, string, error)
	loginFn    func(context.Context, services.LoginCommand) (services.Account, string, error)
	getFn      func(context.Context, string) (services.Account, error)
}

func (s *stubAccountService) Register(ctx context.Context, cmd services.RegisterCommand) (services.Account, string, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.Account{}, "", services.ErrAccountInvalidInput
}

func (s *stubAccountService) Login(ctx context.Context, cmd services.LoginCommand) (services.Account, string, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, cmd)
	}
	return services.Account{}, "", services.ErrAccountUnauthorized
}

func (s *stubAccountService) GetAccount(ctx context.Context, userID string) (services.Account, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.Account{}, services.ErrAccountNotFound
}

func (s *stubAccountService) CheckAccount(context.Context, string) (string, bool, error) {
	return auth.RoleCustomer, true, nil
}

type stubCatalogService struct {
	listFn   func(context.Context, services.ProductListFilter) (domain.Page[domain.Product], error)
	getFn    func(context.Context, string) (domain.Product, error)
	createFn func(context.Context, services.UpsertProductCommand) (domain.Product, error)
	updateFn func(context.Context, string, services.UpsertProductCommand) (domain.Product, error)
	deleteFn func(context.Context, string) error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.Page[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Product]{Items: []domain.Product{}}, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productID)
	}
	return domain.Product{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (domain.Product, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Product{}, services.ErrCatalogInvalidInput
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, productID string, cmd services.UpsertProductCommand) (domain.Product, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, productID, cmd)
	}
	return domain.Product{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, productID)
	}
	return nil
}

type stubCartService struct {
	getFn    func(context.Context, string) (domain.Cart, error)
	addFn    func(context.Context, services.AddCartItemCommand) (domain.Cart, error)
	updateFn func(context.Context, services.UpdateCartItemCommand) (domain.Cart, error)
	removeFn func(context.Context, string, string) (domain.Cart, error)
	clearFn  func(context.Context, string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (domain.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return domain.Cart{}, services.ErrCartInvalidInput
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateCartItemCommand) (domain.Cart, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Cart{}, services.ErrCartItemNotFound
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID string) (domain.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, userID, itemID)
	}
	return domain.Cart{}, services.ErrCartItemNotFound
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearFn != nil {
		return s.clearFn(ctx, userID)
	}
	return nil
}

type stubOrderService struct {
	createFn   func(context.Context, services.CreateOrderCommand) (domain.Order, error)
	listMineFn func(context.Context, string, string, int, int) (domain.Page[domain.Order], error)
	listFn     func(context.Context, services.OrderListFilter) (domain.Page[domain.Order], error)
	getFn      func(context.Context, services.GetOrderCommand) (domain.Order, error)
	updateFn   func(context.Context, services.UpdateOrderStatusCommand) (domain.Order, error)
	deleteFn   func(context.Context, string) error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Order{}, services.ErrOrderInvalidInput
}

func (s *stubOrderService) ListMyOrders(ctx context.Context, userID, status string, page, limit int) (domain.Page[domain.Order], error) {
	if s.listMineFn != nil {
		return s.listMineFn(ctx, userID, status, page, limit)
	}
	return domain.Page[domain.Order]{Items: []domain.Order{}}, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.Page[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.Page[domain.Order]{Items: []domain.Order{}}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, cmd)
	}
	return domain.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return services.ErrOrderNotFound
}

type stubSystemService struct {
	reportFn func(context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}
