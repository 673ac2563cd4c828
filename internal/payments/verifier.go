package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the gateway payment states relevant to order creation.
type Status string

const (
	// StatusReady indicates the payment is awaiting customer action.
	StatusReady Status = "ready"
	// StatusPaid indicates the gateway captured the payment.
	StatusPaid Status = "paid"
	// StatusCancelled indicates the payment was cancelled or refunded.
	StatusCancelled Status = "cancelled"
	// StatusFailed indicates the payment attempt failed.
	StatusFailed Status = "failed"
)

// ErrPaymentNotFound is returned when the gateway has no record of the
// transaction ID.
var ErrPaymentNotFound = errors.New("payments: payment not found")

// ErrGatewayUnavailable is returned when the gateway cannot be reached or
// answers with a server-side failure. Callers decide whether to degrade.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// Verification is the gateway's record of a transaction, used to cross-check
// the client-supplied payment references and amount.
type Verification struct {
	ImpUID      string
	MerchantUID string
	Amount      int64
	Status      Status
	PaidAt      *time.Time
}

// Verifier looks up a transaction by its gateway ID.
type Verifier interface {
	Lookup(ctx context.Context, impUID string) (Verification, error)
}
