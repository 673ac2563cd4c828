package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
	"github.com/stitchfield/api/internal/platform/httpx"
	"github.com/stitchfield/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return err
	}
	return nil
}

// writeDecodeError reports a body parsing failure without echoing the payload.
func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

type accountPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func buildAccountPayload(account services.Account) accountPayload {
	payload := accountPayload{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.Name,
		Phone: account.Phone,
		Role:  string(account.Role),
	}
	if !account.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(account.CreatedAt)
	}
	return payload
}

type productPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Sizes       []string `json:"sizes"`
	SKU         string   `json:"sku"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Stock       int      `json:"stock"`
	Active      bool     `json:"isActive"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	sizes := make([]string, 0, len(product.Sizes))
	for _, size := range product.Sizes {
		sizes = append(sizes, string(size))
	}
	payload := productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Category:    string(product.Category),
		Sizes:       sizes,
		SKU:         product.SKU,
		ImageURL:    product.ImageURL,
		Stock:       product.Stock,
		Active:      product.Active,
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(product.CreatedAt)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(product.UpdatedAt)
	}
	return payload
}

func buildProductPayloads(products []domain.Product) []productPayload {
	payloads := make([]productPayload, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, buildProductPayload(product))
	}
	return payloads
}

type cartItemPayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	AddedAt   string `json:"addedAt,omitempty"`
}

type cartPayload struct {
	UserID    string            `json:"userId"`
	Items     []cartItemPayload `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  int64             `json:"subtotal"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	count := 0
	for _, item := range cart.Items {
		entry := cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			ImageURL:  item.ImageURL,
			Size:      string(item.Size),
			Quantity:  item.Quantity,
			Subtotal:  item.Price * int64(item.Quantity),
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		items = append(items, entry)
		count += item.Quantity
	}
	payload := cartPayload{
		UserID:    cart.UserID,
		Items:     items,
		ItemCount: count,
		Subtotal:  cart.Subtotal(),
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type orderPayload struct {
	ID                    string             `json:"id"`
	OrderNumber           string             `json:"orderNumber"`
	UserID                string             `json:"userId"`
	Items                 []orderItemPayload `json:"items"`
	TotalAmount           int64              `json:"totalAmount"`
	Status                string             `json:"status"`
	ShippingStatus        string             `json:"shippingStatus"`
	PaymentStatus         string             `json:"paymentStatus"`
	PaymentMethod         string             `json:"paymentMethod"`
	ShippingAddress       string             `json:"shippingAddress"`
	RecipientName         string             `json:"recipientName"`
	RecipientPhone        string             `json:"recipientPhone,omitempty"`
	Memo                  string             `json:"memo,omitempty"`
	ImpUID                string             `json:"impUid,omitempty"`
	MerchantUID           string             `json:"merchantUid,omitempty"`
	TrackingNumber        string             `json:"trackingNumber,omitempty"`
	EstimatedDeliveryDate string             `json:"estimatedDeliveryDate,omitempty"`
	PaidAt                string             `json:"paidAt,omitempty"`
	ShippedAt             string             `json:"shippedAt,omitempty"`
	DeliveredAt           string             `json:"deliveredAt,omitempty"`
	CreatedAt             string             `json:"createdAt,omitempty"`
	UpdatedAt             string             `json:"updatedAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      string(item.Size),
			ImageURL:  item.ImageURL,
		})
	}
	payload := orderPayload{
		ID:                    order.ID,
		OrderNumber:           order.OrderNumber,
		UserID:                order.UserID,
		Items:                 items,
		TotalAmount:           order.TotalAmount,
		Status:                string(order.Status),
		ShippingStatus:        string(order.ShippingStatus),
		PaymentStatus:         string(order.PaymentStatus),
		PaymentMethod:         string(order.PaymentMethod),
		ShippingAddress:       order.ShippingAddress,
		RecipientName:         order.RecipientName,
		RecipientPhone:        order.RecipientPhone,
		Memo:                  order.Memo,
		ImpUID:                order.ImpUID,
		MerchantUID:           order.MerchantUID,
		TrackingNumber:        order.TrackingNumber,
		EstimatedDeliveryDate: formatTimePtr(order.EstimatedDeliveryDate),
		PaidAt:                formatTimePtr(order.PaidAt),
		ShippedAt:             formatTimePtr(order.ShippedAt),
		DeliveredAt:           formatTimePtr(order.DeliveredAt),
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(order.CreatedAt)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}
	return payload
}

func buildOrderPayloads(orders []domain.Order) []orderPayload {
	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, buildOrderPayload(order))
	}
	return payloads
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
