package domain

import "time"

// UserRole separates storefront customers from console administrators.
type UserRole string

const (
	// RoleCustomer is the default role assigned at registration.
	RoleCustomer UserRole = "customer"
	// RoleAdmin unlocks the admin console surfaces.
	RoleAdmin UserRole = "admin"
)

// ValidUserRole reports whether the value is a known role.
func ValidUserRole(value UserRole) bool {
	return value == RoleCustomer || value == RoleAdmin
}

// User is a first-party account. PasswordHash carries the bcrypt digest
// and must never leave the service layer.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
