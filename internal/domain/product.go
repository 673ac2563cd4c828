package domain

import (
	"strings"
	"time"
)

// ProductCategory groups catalog products for browsing and filtering.
type ProductCategory string

const (
	// CategoryTops covers shirts, knits, and outerwear.
	CategoryTops ProductCategory = "tops"
	// CategoryBottoms covers trousers, skirts, and shorts.
	CategoryBottoms ProductCategory = "bottoms"
	// CategoryAccessories covers bags, hats, and jewellery.
	CategoryAccessories ProductCategory = "accessories"
)

// ValidProductCategory reports whether the value is a known category.
func ValidProductCategory(value ProductCategory) bool {
	switch value {
	case CategoryTops, CategoryBottoms, CategoryAccessories:
		return true
	default:
		return false
	}
}

// Size enumerates the garment sizes a product can be stocked in.
type Size string

const (
	SizeXXS Size = "XXS"
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// ValidSize reports whether the value is a known size.
func ValidSize(value Size) bool {
	switch value {
	case SizeXXS, SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL:
		return true
	default:
		return false
	}
}

// ParseSize normalises free-form input into a Size.
func ParseSize(value string) (Size, bool) {
	size := Size(strings.ToUpper(strings.TrimSpace(value)))
	if !ValidSize(size) {
		return "", false
	}
	return size, true
}

// Product is a catalog entry. Price is stored in whole currency units
// (KRW has no minor unit).
type Product struct {
	ID          string
	Name        string
	Description string
	Price       int64
	Category    ProductCategory
	Sizes       []Size
	SKU         string
	ImageURL    string
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
