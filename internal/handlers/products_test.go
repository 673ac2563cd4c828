package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/services"
)

func TestProductHandlersListWithPagination(t *testing.T) {
	catalog := &stubCatalogService{
		listFn: func(_ context.Context, filter services.ProductListFilter) (domain.Page[domain.Product], error) {
			if filter.Category != "tops" || !filter.ActiveOnly {
				t.Fatalf("filter not parsed from query: %+v", filter)
			}
			if filter.Page != 2 || filter.Limit != 5 {
				t.Fatalf("paging not parsed from query: %+v", filter)
			}
			return domain.Page[domain.Product]{
				Items:      []domain.Product{{ID: "prd_1", Name: "Wool Overshirt", Category: domain.CategoryTops}},
				TotalCount: 11,
			}, nil
		},
	}
	r := chi.NewRouter()
	NewProductHandlers(catalog).Routes(r)

	rr := doRequest(r, httptest.NewRequest(http.MethodGet, "/?category=tops&active=true&page=2&limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Success    bool `json:"success"`
		Pagination struct {
			CurrentPage int   `json:"currentPage"`
			TotalPages  int   `json:"totalPages"`
			TotalCount  int64 `json:"totalCount"`
			HasNextPage bool  `json:"hasNextPage"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Pagination.CurrentPage != 2 || resp.Pagination.TotalPages != 3 || resp.Pagination.TotalCount != 11 {
		t.Fatalf("unexpected pagination %+v", resp.Pagination)
	}
	if !resp.Pagination.HasNextPage {
		t.Fatal("expected hasNextPage on page 2 of 3")
	}
}

func TestProductHandlersGetNotFound(t *testing.T) {
	r := chi.NewRouter()
	NewProductHandlers(&stubCatalogService{}).Routes(r)

	rr := doRequest(r, httptest.NewRequest(http.MethodGet, "/prd_missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestProductHandlersAdminCreate(t *testing.T) {
	catalog := &stubCatalogService{
		createFn: func(_ context.Context, cmd services.UpsertProductCommand) (domain.Product, error) {
			if cmd.SKU != "TOP-WS-001" || len(cmd.Sizes) != 2 {
				t.Fatalf("command not decoded: %+v", cmd)
			}
			return domain.Product{ID: "prd_1", Name: cmd.Name, SKU: cmd.SKU, Active: true}, nil
		},
	}
	r := chi.NewRouter()
	NewProductHandlers(catalog).AdminRoutes(r)

	body := `{"name":"Wool Overshirt","price":89000,"category":"tops","sizes":["M","L"],"sku":"TOP-WS-001","stock":12}`
	rr := doRequest(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"id":"prd_1"`) {
		t.Fatalf("unexpected payload %s", rr.Body.String())
	}
}

func TestProductHandlersAdminCreateDuplicateSKU(t *testing.T) {
	catalog := &stubCatalogService{
		createFn: func(context.Context, services.UpsertProductCommand) (domain.Product, error) {
			return domain.Product{}, services.ErrCatalogConflict
		},
	}
	r := chi.NewRouter()
	NewProductHandlers(catalog).AdminRoutes(r)

	body := `{"name":"Wool Overshirt","price":89000,"category":"tops","sizes":["M"],"sku":"TOP-WS-001"}`
	rr := doRequest(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestProductHandlersAdminDelete(t *testing.T) {
	deleted := ""
	catalog := &stubCatalogService{
		deleteFn: func(_ context.Context, productID string) error {
			deleted = productID
			return nil
		},
	}
	r := chi.NewRouter()
	NewProductHandlers(catalog).AdminRoutes(r)

	rr := doRequest(r, httptest.NewRequest(http.MethodDelete, "/prd_1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if deleted != "prd_1" {
		t.Fatalf("delete not forwarded, got %q", deleted)
	}
}
