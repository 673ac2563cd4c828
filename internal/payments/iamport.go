package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	tokenPath    = "/users/getToken"
	paymentsPath = "/payments/"

	// tokenExpiryMargin forces a refresh slightly before the gateway-reported
	// expiry to avoid racing the deadline.
	tokenExpiryMargin = 30 * time.Second
)

// IamportClient verifies payments against an Iamport-compatible REST gateway.
// Access tokens are cached until shortly before their reported expiry.
type IamportClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	clock      func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// IamportOption configures optional client behaviour.
type IamportOption func(*IamportClient)

// WithHTTPClient overrides the HTTP client, primarily to set timeouts.
func WithHTTPClient(client *http.Client) IamportOption {
	return func(c *IamportClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithIamportClock injects a custom clock primarily for tests.
func WithIamportClock(clock func() time.Time) IamportOption {
	return func(c *IamportClient) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewIamportClient constructs a verifier for the given gateway credentials.
func NewIamportClient(baseURL, apiKey, apiSecret string, opts ...IamportOption) (*IamportClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("payments: gateway base url is required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("payments: invalid gateway base url: %w", err)
	}
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(apiSecret) == "" {
		return nil, errors.New("payments: gateway credentials are required")
	}

	client := &IamportClient{
		baseURL:    trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		apiSecret:  strings.TrimSpace(apiSecret),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type gatewayEnvelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiredAt   int64  `json:"expired_at"`
}

type paymentResponse struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	PaidAt      int64  `json:"paid_at"`
}

// Lookup fetches the gateway's record for the transaction. A stale cached
// token is refreshed once before the lookup is reported as failed.
func (c *IamportClient) Lookup(ctx context.Context, impUID string) (Verification, error) {
	if c == nil {
		return Verification{}, errors.New("payments: client not initialised")
	}
	uid := strings.TrimSpace(impUID)
	if uid == "" {
		return Verification{}, fmt.Errorf("%w: empty transaction id", ErrPaymentNotFound)
	}

	verification, err := c.lookup(ctx, uid, false)
	if errors.Is(err, errTokenRejected) {
		verification, err = c.lookup(ctx, uid, true)
	}
	if errors.Is(err, errTokenRejected) {
		return Verification{}, fmt.Errorf("%w: gateway rejected credentials", ErrGatewayUnavailable)
	}
	return verification, err
}

// errTokenRejected signals that the gateway refused the current access token.
var errTokenRejected = errors.New("payments: access token rejected")

func (c *IamportClient) lookup(ctx context.Context, impUID string, forceRefresh bool) (Verification, error) {
	token, err := c.accessToken(ctx, forceRefresh)
	if err != nil {
		return Verification{}, err
	}

	endpoint := c.baseURL + paymentsPath + url.PathEscape(impUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verification{}, fmt.Errorf("payments: build lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Verification{}, errTokenRejected
	case resp.StatusCode == http.StatusNotFound:
		return Verification{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, impUID)
	case resp.StatusCode >= http.StatusInternalServerError:
		return Verification{}, fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	envelope, err := decodeEnvelope(resp.Body)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if envelope.Code != 0 || len(envelope.Response) == 0 || string(envelope.Response) == "null" {
		return Verification{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, impUID)
	}

	var payment paymentResponse
	if err := json.Unmarshal(envelope.Response, &payment); err != nil {
		return Verification{}, fmt.Errorf("%w: decode payment: %v", ErrGatewayUnavailable, err)
	}

	verification := Verification{
		ImpUID:      payment.ImpUID,
		MerchantUID: payment.MerchantUID,
		Amount:      payment.Amount,
		Status:      Status(payment.Status),
	}
	if payment.PaidAt > 0 {
		paidAt := time.Unix(payment.PaidAt, 0).UTC()
		verification.PaidAt = &paidAt
	}
	return verification, nil
}

func (c *IamportClient) accessToken(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if !forceRefresh && c.token != "" && now.Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"imp_key":    c.apiKey,
		"imp_secret": c.apiSecret,
	})
	if err != nil {
		return "", fmt.Errorf("payments: encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("payments: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("%w: gateway rejected credentials", ErrGatewayUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	envelope, err := decodeEnvelope(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	var token tokenResponse
	if err := json.Unmarshal(envelope.Response, &token); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrGatewayUnavailable, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGatewayUnavailable)
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Unix(token.ExpiredAt, 0)
	return c.token, nil
}

func decodeEnvelope(body io.Reader) (gatewayEnvelope, error) {
	var envelope gatewayEnvelope
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&envelope); err != nil {
		return gatewayEnvelope{}, fmt.Errorf("decode gateway response: %w", err)
	}
	return envelope, nil
}

var _ Verifier = (*IamportClient)(nil)
