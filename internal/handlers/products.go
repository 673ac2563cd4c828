package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stitchfield/api/internal/platform/httpx"
	"github.com/stitchfield/api/internal/platform/pagination"
	"github.com/stitchfield/api/internal/services"
)

// ProductHandlers exposes the public catalog and the admin product console.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs handlers over the catalog service.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes wires the public /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{productID}", h.get)
}

// AdminRoutes wires the console product endpoints. Callers are expected to
// mount these behind admin authentication.
func (h *ProductHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{productID}", h.get)
	r.Put("/{productID}", h.update)
	r.Delete("/{productID}", h.delete)
}

func (h *ProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params := pagination.FromQuery(r.URL.Query())
	filter := services.ProductListFilter{
		Category: trimmedQuery(r, "category"),
		Page:     params.Page,
		Limit:    params.Limit,
	}
	if raw := trimmedQuery(r, "active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.ActiveOnly = active
		}
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	httpx.WriteList(w, http.StatusOK, buildProductPayloads(page.Items), httpx.NewPagination(params.Page, params.Limit, page.TotalCount))
}

func (h *ProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildProductPayload(product))
}

type upsertProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Sizes       []string `json:"sizes"`
	SKU         string   `json:"sku"`
	ImageURL    string   `json:"imageUrl"`
	Stock       int      `json:"stock"`
	Active      *bool    `json:"isActive"`
}

func (req upsertProductRequest) command() services.UpsertProductCommand {
	return services.UpsertProductCommand{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Sizes:       req.Sizes,
		SKU:         req.SKU,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
		Active:      req.Active,
	}
}

func (h *ProductHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.command())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusCreated, buildProductPayload(product))
}

func (h *ProductHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, chi.URLParam(r, "productID"), req.command())
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteData(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productID")); err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "product deleted", nil)
}

func (h *ProductHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("sku_taken", "sku is already in use", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "something went wrong", http.StatusInternalServerError))
	}
}
