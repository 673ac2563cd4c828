package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/repositories"
)

const cartItemIDPrefix = "itm_"

var (
	// ErrCartInvalidInput signals the caller provided invalid cart data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the referenced cart line does not exist.
	ErrCartItemNotFound = errors.New("cart: item not found")
	// ErrCartProductUnavailable indicates the product is missing or not sellable.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	newID    func() string
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
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

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

// GetCart returns the user's cart. A cart that was never written yet reads as
// an empty cart, not an error.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	cart, err := s.carts.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			now := s.clock()
			return Cart{UserID: uid, Items: []CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		return Cart{}, err
	}
	return cart, nil
}

// AddItem snapshots the product into the cart. Adding a product and size that
// is already in the cart merges into the existing line instead of creating a
// duplicate.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}
	// Size is optional: accessories and other unsized products are added
	// without one, and the empty size is its own dedup key.
	var size domain.Size
	if trimmed := strings.TrimSpace(cmd.Size); trimmed != "" {
		parsed, ok := domain.ParseSize(trimmed)
		if !ok {
			return Cart{}, fmt.Errorf("%w: unknown size %q", ErrCartInvalidInput, cmd.Size)
		}
		size = parsed
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
		}
		return Cart{}, err
	}
	if !product.Active {
		return Cart{}, fmt.Errorf("%w: %s is not for sale", ErrCartProductUnavailable, productID)
	}
	if size != "" && !offersSize(product, size) {
		return Cart{}, fmt.Errorf("%w: size %s not offered for %s", ErrCartInvalidInput, size, productID)
	}

	cart, err := s.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	now := s.clock()
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].Size == size {
			cart.Items[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, CartItem{
			ID:        cartItemIDPrefix + s.newID(),
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			ImageURL:  product.ImageURL,
			Size:      size,
			Quantity:  cmd.Quantity,
			AddedAt:   now,
		})
	}
	cart.UpdatedAt = now

	return s.carts.Save(ctx, cart)
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}

	cart, err := s.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	updated := false
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items[i].Quantity = cmd.Quantity
			updated = true
			break
		}
	}
	if !updated {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, itemID)
	}
	cart.UpdatedAt = s.clock()

	return s.carts.Save(ctx, cart)
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, itemID string) (Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	id := strings.TrimSpace(itemID)
	if id == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	cart, err := s.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	kept := cart.Items[:0]
	removed := false
	for _, item := range cart.Items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return Cart{}, fmt.Errorf("%w: %s", ErrCartItemNotFound, id)
	}
	cart.Items = kept
	cart.UpdatedAt = s.clock()

	return s.carts.Save(ctx, cart)
}

func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.carts.Clear(ctx, uid, s.clock())
}

func offersSize(product Product, size Size) bool {
	for _, offered := range product.Sizes {
		if offered == size {
			return true
		}
	}
	return false
}
