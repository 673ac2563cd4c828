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

const (
	productsCollection    = "products"
	productSkusCollection = "productSkus"
)

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	Category    string    `firestore:"category"`
	Sizes       []string  `firestore:"sizes"`
	SKU         string    `firestore:"sku"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	Stock       int       `firestore:"stock"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// productSkuDocument reserves a SKU. The document ID is the SKU itself, so a
// second product claiming the same SKU fails the transactional create.
type productSkuDocument struct {
	ProductID string    `firestore:"productId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// ProductRepository persists catalog products with SKU reservation documents.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
	skus     *pfirestore.BaseRepository[productSkuDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
		skus:     pfirestore.NewBaseRepository[productSkuDocument](provider, productSkusCollection),
	}, nil
}

// Insert creates the product and its SKU reservation in one transaction. A SKU
// already held by another product surfaces as a conflict error.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	sku := strings.TrimSpace(product.SKU)
	if sku == "" {
		return errors.New("product repository: sku is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		skuRef, err := r.skus.DocumentRef(ctx, sku)
		if err != nil {
			return err
		}
		productRef, err := r.products.DocumentRef(ctx, product.ID)
		if err != nil {
			return err
		}
		if err := tx.Create(skuRef, productSkuDocument{ProductID: product.ID, CreatedAt: product.CreatedAt.UTC()}); err != nil {
			return err
		}
		return tx.Create(productRef, encodeProduct(product))
	})
	if err != nil {
		return pfirestore.WrapError("products.insert", err)
	}
	return nil
}

// Update replaces the product document. A SKU change swaps the reservation in
// the same transaction, claiming the new SKU before releasing the old one.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	sku := strings.TrimSpace(product.SKU)
	if sku == "" {
		return errors.New("product repository: sku is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef, err := r.products.DocumentRef(ctx, product.ID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(productRef)
		if err != nil {
			return err
		}
		var existing productDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return err
		}

		if existing.SKU != sku {
			newSkuRef, err := r.skus.DocumentRef(ctx, sku)
			if err != nil {
				return err
			}
			if err := tx.Create(newSkuRef, productSkuDocument{ProductID: product.ID, CreatedAt: product.UpdatedAt.UTC()}); err != nil {
				return err
			}
			if existing.SKU != "" {
				oldSkuRef, err := r.skus.DocumentRef(ctx, existing.SKU)
				if err != nil {
					return err
				}
				if err := tx.Delete(oldSkuRef); err != nil {
					return err
				}
			}
		}

		doc := encodeProduct(product)
		doc.CreatedAt = existing.CreatedAt
		return tx.Set(productRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("products.update", err)
	}
	return nil
}

// Delete removes the product and releases its SKU reservation.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		productRef, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(productRef)
		if err != nil {
			return err
		}
		var existing productDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return err
		}
		if existing.SKU != "" {
			skuRef, err := r.skus.DocumentRef(ctx, existing.SKU)
			if err != nil {
				return err
			}
			if err := tx.Delete(skuRef); err != nil {
				return err
			}
		}
		return tx.Delete(productRef)
	})
	if err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// FindBySKU resolves the SKU reservation and loads the product it points to.
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (domain.Product, error) {
	if r == nil || r.skus == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	reservation, err := r.skus.Get(ctx, strings.TrimSpace(sku))
	if err != nil {
		return domain.Product{}, err
	}
	return r.FindByID(ctx, reservation.Data.ProductID)
}

// List returns a page of products ordered by creation time, newest first.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.Page[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Product]{}, errors.New("product repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	query := client.Collection(productsCollection).Query
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category", "==", category)
	}
	if filter.ActiveOnly {
		query = query.Where("active", "==", true)
	}

	total, err := countMatching(ctx, "products.count", query)
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	query = pageWindow(query.OrderBy("createdAt", firestore.Desc), filter.Page, filter.Limit)
	docs, err := r.products.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Product]{}, err
	}

	page := domain.Page[domain.Product]{
		Items:      make([]domain.Product, 0, len(docs)),
		TotalCount: total,
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeProduct(doc.ID, doc.Data))
	}
	return page, nil
}

func encodeProduct(product domain.Product) productDocument {
	sizes := make([]string, 0, len(product.Sizes))
	for _, size := range product.Sizes {
		sizes = append(sizes, string(size))
	}
	return productDocument{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Category:    string(product.Category),
		Sizes:       sizes,
		SKU:         strings.TrimSpace(product.SKU),
		ImageURL:    product.ImageURL,
		Stock:       product.Stock,
		Active:      product.Active,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
}

func decodeProduct(id string, doc productDocument) domain.Product {
	sizes := make([]domain.Size, 0, len(doc.Sizes))
	for _, size := range doc.Sizes {
		sizes = append(sizes, domain.Size(size))
	}
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Category:    domain.ProductCategory(doc.Category),
		Sizes:       sizes,
		SKU:         doc.SKU,
		ImageURL:    doc.ImageURL,
		Stock:       doc.Stock,
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
