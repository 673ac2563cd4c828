package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
)

func newTestCatalogService(t *testing.T, products *stubProductRepository) CatalogService {
	t.Helper()

	svc, err := NewCatalogService(CatalogServiceDeps{
		Products: products,
		Clock: func() time.Time {
			return time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}
	return svc
}

func validProductCommand() UpsertProductCommand {
	return UpsertProductCommand{
		Name:        "Wool Overshirt",
		Description: "Heavy brushed wool.",
		Price:       89000,
		Category:    "tops",
		Sizes:       []string{"m", "l"},
		SKU:         "top-ws-001",
		ImageURL:    "https://img.example.com/ws-001.jpg",
		Stock:       12,
	}
}

func TestCatalogServiceCreateProductNormalises(t *testing.T) {
	products := &stubProductRepository{}
	svc := newTestCatalogService(t, products)

	cmd := validProductCommand()
	cmd.Sizes = []string{"m", "l", "M"}

	product, err := svc.CreateProduct(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}

	if product.ID != "prd_TESTULID" {
		t.Fatalf("unexpected product id %q", product.ID)
	}
	if product.SKU != "TOP-WS-001" {
		t.Fatalf("sku not uppercased: %q", product.SKU)
	}
	if len(product.Sizes) != 2 || product.Sizes[0] != domain.SizeM || product.Sizes[1] != domain.SizeL {
		t.Fatalf("sizes not normalised and deduplicated: %v", product.Sizes)
	}
	if !product.Active {
		t.Fatal("expected Active to default to true")
	}
	want := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	if !product.CreatedAt.Equal(want) || !product.UpdatedAt.Equal(want) {
		t.Fatalf("unexpected timestamps %v / %v", product.CreatedAt, product.UpdatedAt)
	}
	if len(products.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(products.inserted))
	}
}

func TestCatalogServiceCreateProductSanitisesDescription(t *testing.T) {
	svc := newTestCatalogService(t, &stubProductRepository{})

	cmd := validProductCommand()
	cmd.Description = `Soft <script>alert("x")</script>cotton blend`

	product, err := svc.CreateProduct(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}
	if strings.Contains(product.Description, "<script>") {
		t.Fatalf("description retains markup: %q", product.Description)
	}
	if !strings.Contains(product.Description, "cotton blend") {
		t.Fatalf("sanitiser stripped legitimate text: %q", product.Description)
	}
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	mutations := map[string]func(*UpsertProductCommand){
		"missing name":   func(c *UpsertProductCommand) { c.Name = "  " },
		"zero price":     func(c *UpsertProductCommand) { c.Price = 0 },
		"negative price": func(c *UpsertProductCommand) { c.Price = -100 },
		"bad category":   func(c *UpsertProductCommand) { c.Category = "shoes" },
		"no sizes":       func(c *UpsertProductCommand) { c.Sizes = nil },
		"bad size":       func(c *UpsertProductCommand) { c.Sizes = []string{"XLLL"} },
		"missing sku":    func(c *UpsertProductCommand) { c.SKU = " " },
		"negative stock": func(c *UpsertProductCommand) { c.Stock = -1 },
	}

	svc := newTestCatalogService(t, &stubProductRepository{})
	for name, mutate := range mutations {
		cmd := validProductCommand()
		mutate(&cmd)
		if _, err := svc.CreateProduct(context.Background(), cmd); !errors.Is(err, ErrCatalogInvalidInput) {
			t.Fatalf("%s: expected ErrCatalogInvalidInput, got %v", name, err)
		}
	}
}

func TestCatalogServiceCreateProductDuplicateSKU(t *testing.T) {
	products := &stubProductRepository{
		insertFn: func(context.Context, domain.Product) error {
			return errStubConflict
		},
	}
	svc := newTestCatalogService(t, products)

	if _, err := svc.CreateProduct(context.Background(), validProductCommand()); !errors.Is(err, ErrCatalogConflict) {
		t.Fatalf("expected ErrCatalogConflict, got %v", err)
	}
}

func TestCatalogServiceUpdateProductPreservesCreation(t *testing.T) {
	created := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	products := &stubProductRepository{
		findByIDFn: func(_ context.Context, productID string) (domain.Product, error) {
			return domain.Product{ID: productID, CreatedAt: created}, nil
		},
	}
	svc := newTestCatalogService(t, products)

	product, err := svc.UpdateProduct(context.Background(), "prd_1", validProductCommand())
	if err != nil {
		t.Fatalf("UpdateProduct returned error: %v", err)
	}
	if product.ID != "prd_1" {
		t.Fatalf("update replaced the product id: %q", product.ID)
	}
	if !product.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt rewritten: %v", product.CreatedAt)
	}
	if !product.UpdatedAt.Equal(time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("UpdatedAt not stamped: %v", product.UpdatedAt)
	}
}

func TestCatalogServiceGetProductNotFound(t *testing.T) {
	svc := newTestCatalogService(t, &stubProductRepository{})

	if _, err := svc.GetProduct(context.Background(), "prd_missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}

func TestCatalogServiceListProductsRejectsUnknownCategory(t *testing.T) {
	svc := newTestCatalogService(t, &stubProductRepository{})

	_, err := svc.ListProducts(context.Background(), ProductListFilter{Category: "footwear"})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}

func TestCatalogServiceListProductsPassesFilterThrough(t *testing.T) {
	var got ProductListFilter
	products := &stubProductRepository{
		listFn: func(_ context.Context, filter ProductListFilter) (domain.Page[domain.Product], error) {
			got = filter
			return domain.Page[domain.Product]{Items: []domain.Product{{ID: "prd_1"}}, TotalCount: 7}, nil
		},
	}
	svc := newTestCatalogService(t, products)

	page, err := svc.ListProducts(context.Background(), ProductListFilter{Category: "tops", ActiveOnly: true, Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if got.Category != "tops" || !got.ActiveOnly || got.Page != 2 || got.Limit != 5 {
		t.Fatalf("filter not forwarded: %+v", got)
	}
	if page.TotalCount != 7 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}
