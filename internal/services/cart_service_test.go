package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
)

func newTestCartService(t *testing.T, carts *stubCartRepository, products *stubProductRepository) CartService {
	t.Helper()

	svc, err := NewCartService(CartServiceDeps{
		Carts:    carts,
		Products: products,
		Clock: func() time.Time {
			return time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewCartService returned error: %v", err)
	}
	return svc
}

func sellableProduct() domain.Product {
	return domain.Product{
		ID:       "prd_1",
		Name:     "Wool Overshirt",
		Price:    89000,
		ImageURL: "https://img.example.com/ws-001.jpg",
		Sizes:    []domain.Size{domain.SizeM, domain.SizeL},
		Active:   true,
	}
}

func productLookup(product domain.Product) func(context.Context, string) (domain.Product, error) {
	return func(_ context.Context, productID string) (domain.Product, error) {
		if productID != product.ID {
			return domain.Product{}, errStubNotFound
		}
		return product, nil
	}
}

func TestCartServiceGetCartMissingReadsEmpty(t *testing.T) {
	svc := newTestCartService(t, &stubCartRepository{}, &stubProductRepository{})

	cart, err := svc.GetCart(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("GetCart returned error: %v", err)
	}
	if cart.UserID != "usr_1" || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart for usr_1, got %+v", cart)
	}
}

func TestCartServiceAddItemSnapshotsProduct(t *testing.T) {
	carts := &stubCartRepository{}
	products := &stubProductRepository{findByIDFn: productLookup(sellableProduct())}
	svc := newTestCartService(t, carts, products)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "usr_1",
		ProductID: "prd_1",
		Size:      "m",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Items))
	}
	item := cart.Items[0]
	if item.ID != "itm_TESTULID" {
		t.Fatalf("unexpected item id %q", item.ID)
	}
	if item.Name != "Wool Overshirt" || item.Price != 89000 || item.ImageURL == "" {
		t.Fatalf("product not snapshotted into line: %+v", item)
	}
	if item.Size != domain.SizeM || item.Quantity != 2 {
		t.Fatalf("unexpected line contents: %+v", item)
	}
	if len(carts.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(carts.saved))
	}
}

func TestCartServiceAddItemWithoutSize(t *testing.T) {
	accessory := domain.Product{
		ID:     "prd_belt",
		Name:   "Leather Belt",
		Price:  32000,
		Active: true,
	}
	carts := &stubCartRepository{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID: userID,
				Items: []domain.CartItem{{
					ID:        "itm_existing",
					ProductID: "prd_belt",
					Size:      "",
					Quantity:  1,
				}},
			}, nil
		},
	}
	products := &stubProductRepository{findByIDFn: productLookup(accessory)}
	svc := newTestCartService(t, carts, products)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "usr_1",
		ProductID: "prd_belt",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("sizeless lines should merge on the empty size, got %d lines", len(cart.Items))
	}
	if cart.Items[0].Size != "" || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected merged line: %+v", cart.Items[0])
	}
}

func TestCartServiceAddItemMergesSameProductAndSize(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID: userID,
				Items: []domain.CartItem{{
					ID:        "itm_existing",
					ProductID: "prd_1",
					Size:      domain.SizeM,
					Quantity:  1,
					Price:     89000,
				}},
			}, nil
		},
	}
	products := &stubProductRepository{findByIDFn: productLookup(sellableProduct())}
	svc := newTestCartService(t, carts, products)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "usr_1",
		ProductID: "prd_1",
		Size:      "M",
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected merged single line, got %d lines", len(cart.Items))
	}
	if cart.Items[0].ID != "itm_existing" || cart.Items[0].Quantity != 3 {
		t.Fatalf("line not merged in place: %+v", cart.Items[0])
	}
}

func TestCartServiceAddItemDifferentSizeAddsLine(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID: userID,
				Items: []domain.CartItem{{
					ID:        "itm_existing",
					ProductID: "prd_1",
					Size:      domain.SizeM,
					Quantity:  1,
				}},
			}, nil
		},
	}
	products := &stubProductRepository{findByIDFn: productLookup(sellableProduct())}
	svc := newTestCartService(t, carts, products)

	cart, err := svc.AddItem(context.Background(), AddCartItemCommand{
		UserID:    "usr_1",
		ProductID: "prd_1",
		Size:      "L",
		Quantity:  1,
	})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected a second line for the new size, got %d lines", len(cart.Items))
	}
}

func TestCartServiceAddItemRejections(t *testing.T) {
	inactive := sellableProduct()
	inactive.Active = false

	cases := []struct {
		name    string
		product domain.Product
		cmd     AddCartItemCommand
		want    error
	}{
		{
			name:    "unknown product",
			product: sellableProduct(),
			cmd:     AddCartItemCommand{UserID: "usr_1", ProductID: "prd_missing", Size: "M", Quantity: 1},
			want:    ErrCartProductUnavailable,
		},
		{
			name:    "inactive product",
			product: inactive,
			cmd:     AddCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Size: "M", Quantity: 1},
			want:    ErrCartProductUnavailable,
		},
		{
			name:    "size not offered",
			product: sellableProduct(),
			cmd:     AddCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Size: "XXL", Quantity: 1},
			want:    ErrCartInvalidInput,
		},
		{
			name:    "unknown size",
			product: sellableProduct(),
			cmd:     AddCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Size: "HUGE", Quantity: 1},
			want:    ErrCartInvalidInput,
		},
		{
			name:    "zero quantity",
			product: sellableProduct(),
			cmd:     AddCartItemCommand{UserID: "usr_1", ProductID: "prd_1", Size: "M", Quantity: 0},
			want:    ErrCartInvalidInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			products := &stubProductRepository{findByIDFn: productLookup(tc.product)}
			svc := newTestCartService(t, &stubCartRepository{}, products)

			if _, err := svc.AddItem(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCartServiceUpdateItemQuantity(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID: userID,
				Items:  []domain.CartItem{{ID: "itm_1", Quantity: 1}},
			}, nil
		},
	}
	svc := newTestCartService(t, carts, &stubProductRepository{})

	cart, err := svc.UpdateItemQuantity(context.Background(), UpdateCartItemCommand{
		UserID:   "usr_1",
		ItemID:   "itm_1",
		Quantity: 4,
	})
	if err != nil {
		t.Fatalf("UpdateItemQuantity returned error: %v", err)
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("quantity not updated: %+v", cart.Items[0])
	}

	if _, err := svc.UpdateItemQuantity(context.Background(), UpdateCartItemCommand{
		UserID:   "usr_1",
		ItemID:   "itm_missing",
		Quantity: 2,
	}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceRemoveItem(t *testing.T) {
	carts := &stubCartRepository{
		getFn: func(_ context.Context, userID string) (domain.Cart, error) {
			return domain.Cart{
				UserID: userID,
				Items: []domain.CartItem{
					{ID: "itm_1"},
					{ID: "itm_2"},
				},
			}, nil
		},
	}
	svc := newTestCartService(t, carts, &stubProductRepository{})

	cart, err := svc.RemoveItem(context.Background(), "usr_1", "itm_1")
	if err != nil {
		t.Fatalf("RemoveItem returned error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ID != "itm_2" {
		t.Fatalf("unexpected remaining lines: %+v", cart.Items)
	}

	if _, err := svc.RemoveItem(context.Background(), "usr_1", "itm_gone"); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartServiceClearCart(t *testing.T) {
	carts := &stubCartRepository{
		clearFn: func(_ context.Context, _ string, now time.Time) error {
			if now.Location() != time.UTC {
				t.Fatalf("expected UTC clear timestamp, got %v", now)
			}
			return nil
		},
	}
	svc := newTestCartService(t, carts, &stubProductRepository{})

	if err := svc.ClearCart(context.Background(), "usr_1"); err != nil {
		t.Fatalf("ClearCart returned error: %v", err)
	}
	if len(carts.clearCalls) != 1 || carts.clearCalls[0] != "usr_1" {
		t.Fatalf("unexpected clear calls: %v", carts.clearCalls)
	}
}
