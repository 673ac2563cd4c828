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
	ordersCollection       = "orders"
	paymentRefsCollection  = "paymentRefs"
	orderNumbersCollection = "orderNumbers"
)

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Price     int64  `firestore:"price"`
	Quantity  int    `firestore:"quantity"`
	Size      string `firestore:"size"`
	ImageURL  string `firestore:"imageUrl,omitempty"`
}

type orderDocument struct {
	OrderNumber           string              `firestore:"orderNumber"`
	UserID                string              `firestore:"userId"`
	Items                 []orderItemDocument `firestore:"items"`
	TotalAmount           int64               `firestore:"totalAmount"`
	Status                string              `firestore:"status"`
	ShippingStatus        string              `firestore:"shippingStatus"`
	PaymentStatus         string              `firestore:"paymentStatus"`
	PaymentMethod         string              `firestore:"paymentMethod"`
	ShippingAddress       string              `firestore:"shippingAddress"`
	RecipientName         string              `firestore:"recipientName"`
	RecipientPhone        string              `firestore:"recipientPhone"`
	Memo                  string              `firestore:"memo,omitempty"`
	ImpUID                string              `firestore:"impUid,omitempty"`
	MerchantUID           string              `firestore:"merchantUid,omitempty"`
	TrackingNumber        string              `firestore:"trackingNumber,omitempty"`
	EstimatedDeliveryDate *time.Time          `firestore:"estimatedDeliveryDate,omitempty"`
	PaidAt                *time.Time          `firestore:"paidAt,omitempty"`
	ShippedAt             *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt           *time.Time          `firestore:"deliveredAt,omitempty"`
	CreatedAt             time.Time           `firestore:"createdAt"`
	UpdatedAt             time.Time           `firestore:"updatedAt"`
}

// reservationDocument marks a payment reference or order number as taken. The
// document ID encodes the reserved value, so a second order reusing it fails
// the transactional create with an already-exists error.
type reservationDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// OrderRepository persists orders together with the reservation documents that
// make merchant UIDs, gateway transaction IDs, and order numbers unique.
type OrderRepository struct {
	provider     *pfirestore.Provider
	orders       *pfirestore.BaseRepository[orderDocument]
	paymentRefs  *pfirestore.BaseRepository[reservationDocument]
	orderNumbers *pfirestore.BaseRepository[reservationDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider:     provider,
		orders:       pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
		paymentRefs:  pfirestore.NewBaseRepository[reservationDocument](provider, paymentRefsCollection),
		orderNumbers: pfirestore.NewBaseRepository[reservationDocument](provider, orderNumbersCollection),
	}, nil
}

// Insert creates the order, its order-number reservation, and a reservation
// for each payment reference in one transaction. Any reservation that already
// exists aborts the whole write and surfaces as a conflict error.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("order repository: order number is required")
	}

	reservation := reservationDocument{OrderID: order.ID, CreatedAt: order.CreatedAt.UTC()}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		numberRef, err := r.orderNumbers.DocumentRef(ctx, order.OrderNumber)
		if err != nil {
			return err
		}
		if err := tx.Create(numberRef, reservation); err != nil {
			return err
		}

		for _, refID := range paymentRefIDs(order) {
			ref, err := r.paymentRefs.DocumentRef(ctx, refID)
			if err != nil {
				return err
			}
			if err := tx.Create(ref, reservation); err != nil {
				return err
			}
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		return tx.Create(orderRef, encodeOrder(order))
	})
	if err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the order document. Reservations are untouched: order
// numbers and payment references never change after creation.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var existing orderDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return err
		}

		doc := encodeOrder(order)
		doc.OrderNumber = existing.OrderNumber
		doc.ImpUID = existing.ImpUID
		doc.MerchantUID = existing.MerchantUID
		doc.CreatedAt = existing.CreatedAt
		return tx.Set(orderRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// Delete removes the order and releases its reservations so the payment
// references could be reused by a retried checkout.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var existing orderDocument
		if err := snapshot.DataTo(&existing); err != nil {
			return err
		}

		if existing.OrderNumber != "" {
			numberRef, err := r.orderNumbers.DocumentRef(ctx, existing.OrderNumber)
			if err != nil {
				return err
			}
			if err := tx.Delete(numberRef); err != nil {
				return err
			}
		}
		for _, refID := range paymentRefIDs(decodeOrder(id, existing)) {
			ref, err := r.paymentRefs.DocumentRef(ctx, refID)
			if err != nil {
				return err
			}
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return tx.Delete(orderRef)
	})
	if err != nil {
		return pfirestore.WrapError("orders.delete", err)
	}
	return nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByMerchantUID resolves the merchant reservation and loads the order it
// points to.
func (r *OrderRepository) FindByMerchantUID(ctx context.Context, merchantUID string) (domain.Order, error) {
	if r == nil || r.paymentRefs == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(merchantUID)
	if uid == "" {
		return domain.Order{}, errors.New("order repository: merchant uid is required")
	}
	reservation, err := r.paymentRefs.Get(ctx, "merchant:"+uid)
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, reservation.Data.OrderID)
}

// List returns a page of orders ordered by creation time, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	query := client.Collection(ordersCollection).Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query = query.Where("status", "==", value)
	}
	if value := strings.TrimSpace(filter.PaymentStatus); value != "" {
		query = query.Where("paymentStatus", "==", value)
	}
	if value := strings.TrimSpace(filter.ShippingStatus); value != "" {
		query = query.Where("shippingStatus", "==", value)
	}

	total, err := countMatching(ctx, "orders.count", query)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	query = pageWindow(query.OrderBy("createdAt", firestore.Desc), filter.Page, filter.Limit)
	docs, err := r.orders.Query(ctx, func(firestore.Query) firestore.Query { return query })
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	page := domain.Page[domain.Order]{
		Items:      make([]domain.Order, 0, len(docs)),
		TotalCount: total,
	}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	return page, nil
}

// paymentRefIDs returns the reservation document IDs for the order's payment
// references. Orders without gateway references reserve nothing here.
func paymentRefIDs(order domain.Order) []string {
	var ids []string
	if uid := strings.TrimSpace(order.MerchantUID); uid != "" {
		ids = append(ids, "merchant:"+uid)
	}
	if uid := strings.TrimSpace(order.ImpUID); uid != "" {
		ids = append(ids, "imp:"+uid)
	}
	return ids
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      string(item.Size),
			ImageURL:  item.ImageURL,
		})
	}
	return orderDocument{
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
		ImpUID:                strings.TrimSpace(order.ImpUID),
		MerchantUID:           strings.TrimSpace(order.MerchantUID),
		TrackingNumber:        strings.TrimSpace(order.TrackingNumber),
		EstimatedDeliveryDate: utcOrNil(order.EstimatedDeliveryDate),
		PaidAt:                utcOrNil(order.PaidAt),
		ShippedAt:             utcOrNil(order.ShippedAt),
		DeliveredAt:           utcOrNil(order.DeliveredAt),
		CreatedAt:             order.CreatedAt.UTC(),
		UpdatedAt:             order.UpdatedAt.UTC(),
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      domain.Size(item.Size),
			ImageURL:  item.ImageURL,
		})
	}
	return domain.Order{
		ID:                    id,
		OrderNumber:           doc.OrderNumber,
		UserID:                doc.UserID,
		Items:                 items,
		TotalAmount:           doc.TotalAmount,
		Status:                domain.OrderStatus(doc.Status),
		ShippingStatus:        domain.ShippingStatus(doc.ShippingStatus),
		PaymentStatus:         domain.PaymentStatus(doc.PaymentStatus),
		PaymentMethod:         domain.PaymentMethod(doc.PaymentMethod),
		ShippingAddress:       doc.ShippingAddress,
		RecipientName:         doc.RecipientName,
		RecipientPhone:        doc.RecipientPhone,
		Memo:                  doc.Memo,
		ImpUID:                doc.ImpUID,
		MerchantUID:           doc.MerchantUID,
		TrackingNumber:        doc.TrackingNumber,
		EstimatedDeliveryDate: doc.EstimatedDeliveryDate,
		PaidAt:                doc.PaidAt,
		ShippedAt:             doc.ShippedAt,
		DeliveredAt:           doc.DeliveredAt,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}
}

func utcOrNil(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
