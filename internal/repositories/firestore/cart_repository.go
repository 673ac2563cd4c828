package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/stitchfield/api/internal/domain"
	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
	"github.com/stitchfield/api/internal/repositories"
)

const cartsCollection = "carts"

type cartItemDocument struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	ImageURL  string    `firestore:"imageUrl,omitempty"`
	Size      string    `firestore:"size"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

type cartDocument struct {
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

// CartRepository stores one cart document per user, items embedded, keyed by user ID.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:     pfirestore.NewBaseRepository[cartDocument](provider, cartsCollection),
		provider: provider,
	}, nil
}

// Get loads the cart for the given user. A missing document surfaces as a
// not-found repository error; callers decide whether that means an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(uid, doc), nil
}

// Save replaces the cart document for cart.UserID with the provided state.
func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := cart.UpdatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := cartDocument{
		Items:      make([]cartItemDocument, 0, len(cart.Items)),
		ItemsCount: len(cart.Items),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			ImageURL:  item.ImageURL,
			Size:      string(item.Size),
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		})
	}

	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := cart
	saved.UserID = uid
	saved.CreatedAt = createdAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Clear empties the cart document while keeping it in place.
func (r *CartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}

	updates := []firestore.Update{
		{Path: "items", Value: []cartItemDocument{}},
		{Path: "itemsCount", Value: 0},
		{Path: "updatedAt", Value: now.UTC()},
	}
	_, err := r.base.Update(ctx, uid, updates)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// Nothing to clear.
			return nil
		}
		return err
	}
	return nil
}

func decodeCart(userID string, doc pfirestore.Document[cartDocument]) domain.Cart {
	cart := domain.Cart{
		UserID:    userID,
		Items:     make([]domain.CartItem, 0, len(doc.Data.Items)),
		CreatedAt: doc.Data.CreatedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.UpdateTime
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = doc.CreateTime
	}
	for _, item := range doc.Data.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			ImageURL:  item.ImageURL,
			Size:      domain.Size(item.Size),
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cart
}

var _ repositories.CartRepository = (*CartRepository)(nil)
