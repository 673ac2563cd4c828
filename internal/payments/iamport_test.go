package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newGatewayServer(t *testing.T, tokenCalls *int32, payments map[string]paymentResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/users/getToken":
			atomic.AddInt32(tokenCalls, 1)
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if body["imp_key"] != "key" || body["imp_secret"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"response": map[string]any{
					"access_token": "tok-123",
					"expired_at":   time.Now().Add(30 * time.Minute).Unix(),
				},
			})
		case r.Method == http.MethodGet && len(r.URL.Path) > len("/payments/"):
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			impUID := r.URL.Path[len("/payments/"):]
			payment, ok := payments[impUID]
			if !ok {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"code":     -1,
					"message":  "no payment",
					"response": nil,
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":     0,
				"response": payment,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestIamportClientLookupPaid(t *testing.T) {
	var tokenCalls int32
	paidAt := time.Date(2026, time.March, 10, 4, 30, 0, 0, time.UTC)
	server := newGatewayServer(t, &tokenCalls, map[string]paymentResponse{
		"imp_001": {
			ImpUID:      "imp_001",
			MerchantUID: "merchant_001",
			Amount:      45000,
			Status:      "paid",
			PaidAt:      paidAt.Unix(),
		},
	})
	defer server.Close()

	client, err := NewIamportClient(server.URL, "key", "secret")
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	verification, err := client.Lookup(context.Background(), "imp_001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if verification.Status != StatusPaid {
		t.Fatalf("expected status paid, got %s", verification.Status)
	}
	if verification.Amount != 45000 {
		t.Fatalf("expected amount 45000, got %d", verification.Amount)
	}
	if verification.MerchantUID != "merchant_001" {
		t.Fatalf("expected merchant_001, got %s", verification.MerchantUID)
	}
	if verification.PaidAt == nil || !verification.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paidAt %s, got %v", paidAt, verification.PaidAt)
	}
}

func TestIamportClientTokenCaching(t *testing.T) {
	var tokenCalls int32
	server := newGatewayServer(t, &tokenCalls, map[string]paymentResponse{
		"imp_001": {ImpUID: "imp_001", MerchantUID: "m1", Amount: 1000, Status: "paid"},
	})
	defer server.Close()

	client, err := NewIamportClient(server.URL, "key", "secret")
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := client.Lookup(context.Background(), "imp_001"); err != nil {
			t.Fatalf("Lookup %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("expected one token request, got %d", got)
	}
}

func TestIamportClientLookupNotFound(t *testing.T) {
	var tokenCalls int32
	server := newGatewayServer(t, &tokenCalls, nil)
	defer server.Close()

	client, err := NewIamportClient(server.URL, "key", "secret")
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	_, err = client.Lookup(context.Background(), "imp_missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestIamportClientGatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewIamportClient(server.URL, "key", "secret")
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	_, err = client.Lookup(context.Background(), "imp_001")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestIamportClientBadCredentials(t *testing.T) {
	var tokenCalls int32
	server := newGatewayServer(t, &tokenCalls, nil)
	defer server.Close()

	client, err := NewIamportClient(server.URL, "wrong", "creds")
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	_, err = client.Lookup(context.Background(), "imp_001")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestIamportClientTokenRefreshAfterExpiry(t *testing.T) {
	var tokenCalls int32
	server := newGatewayServer(t, &tokenCalls, map[string]paymentResponse{
		"imp_001": {ImpUID: "imp_001", MerchantUID: "m1", Amount: 1000, Status: "paid"},
	})
	defer server.Close()

	now := time.Now()
	client, err := NewIamportClient(server.URL, "key", "secret",
		WithIamportClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewIamportClient: %v", err)
	}

	if _, err := client.Lookup(context.Background(), "imp_001"); err != nil {
		t.Fatalf("first lookup: %v", err)
	}

	// Jump past the token expiry; the next lookup must fetch a fresh token.
	now = now.Add(2 * time.Hour)
	if _, err := client.Lookup(context.Background(), "imp_001"); err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 2 {
		t.Fatalf("expected two token requests, got %d", got)
	}
}
