package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/repositories"
)

const productIDPrefix = "prd_"

var (
	// ErrCatalogInvalidInput signals the caller provided invalid product data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product could not be located.
	ErrCatalogNotFound = errors.New("catalog: product not found")
	// ErrCatalogConflict indicates the SKU is already claimed by another product.
	ErrCatalogConflict = errors.New("catalog: sku already in use")
)

// CatalogServiceDeps bundles collaborators required to construct the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Sanitizer   *bluemonday.Policy
}

type catalogService struct {
	products  repositories.ProductRepository
	clock     func() time.Time
	newID     func() string
	sanitizer *bluemonday.Policy
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
// Descriptions are sanitised with a UGC policy before they are stored.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
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
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.UGCPolicy()
	}

	return &catalogService{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		sanitizer: sanitizer,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.Page[Product], error) {
	if category := strings.TrimSpace(filter.Category); category != "" {
		if !domain.ValidProductCategory(domain.ProductCategory(category)) {
			return domain.Page[Product]{}, fmt.Errorf("%w: unknown category %q", ErrCatalogInvalidInput, category)
		}
	}
	return s.products.List(ctx, filter)
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepositoryError(id, err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := s.buildProduct(cmd)
	if err != nil {
		return Product{}, err
	}

	now := s.clock()
	product.ID = productIDPrefix + s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(product.SKU, err)
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	existing, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.mapRepositoryError(id, err)
	}

	product, err := s.buildProduct(cmd)
	if err != nil {
		return Product{}, err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, s.mapRepositoryError(id, err)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	id := strings.TrimSpace(productID)
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.mapRepositoryError(id, err)
	}
	return nil
}

// buildProduct validates the command and normalises it into a domain product.
// The ID and timestamps are left for the caller to fill in.
func (s *catalogService) buildProduct(cmd UpsertProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if cmd.Price <= 0 {
		return Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	category := domain.ProductCategory(strings.TrimSpace(cmd.Category))
	if !domain.ValidProductCategory(category) {
		return Product{}, fmt.Errorf("%w: unknown category %q", ErrCatalogInvalidInput, cmd.Category)
	}
	if len(cmd.Sizes) == 0 {
		return Product{}, fmt.Errorf("%w: at least one size is required", ErrCatalogInvalidInput)
	}
	sizes := make([]domain.Size, 0, len(cmd.Sizes))
	seen := make(map[domain.Size]bool, len(cmd.Sizes))
	for _, raw := range cmd.Sizes {
		size, ok := domain.ParseSize(raw)
		if !ok {
			return Product{}, fmt.Errorf("%w: unknown size %q", ErrCatalogInvalidInput, raw)
		}
		if seen[size] {
			continue
		}
		seen[size] = true
		sizes = append(sizes, size)
	}
	sku := strings.ToUpper(strings.TrimSpace(cmd.SKU))
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock cannot be negative", ErrCatalogInvalidInput)
	}

	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}

	return Product{
		Name:        name,
		Description: s.sanitizer.Sanitize(strings.TrimSpace(cmd.Description)),
		Price:       cmd.Price,
		Category:    category,
		Sizes:       sizes,
		SKU:         sku,
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		Stock:       cmd.Stock,
		Active:      active,
	}, nil
}

func (s *catalogService) mapRepositoryError(ref string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", ErrCatalogNotFound, ref)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %s", ErrCatalogConflict, ref)
		}
	}
	return err
}
