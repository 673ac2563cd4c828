package domain

import "time"

// CartItem is a single cart line. Name, Price, and ImageURL are
// snapshotted from the catalog when the line is added so the cart stays
// stable across later product edits.
type CartItem struct {
	ID        string
	ProductID string
	Name      string
	Price     int64
	ImageURL  string
	Size      Size
	Quantity  int
	AddedAt   time.Time
}

// Cart holds the open cart for a single user. Lines are unique per
// (product, size) pair.
type Cart struct {
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subtotal sums the snapshot price of every line.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// FindItem returns the line matching the (product, size) pair.
func (c Cart) FindItem(productID string, size Size) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID && item.Size == size {
			return item, true
		}
	}
	return CartItem{}, false
}
