package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/env"
)

const defaultGatewayAPIBaseURL = "https://api.razorpay.com/v1"

// GatewayClient creates orders against the payment gateway's REST API.
type GatewayClient struct {
	KeyID      string
	KeySecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

// GatewayOrder is the gateway's view of a created order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// OrderCreator is the gateway surface the reconciliation engine depends on.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
}

func NewGatewayClientFromEnv() *GatewayClient {
	return &GatewayClient{
		KeyID:      strings.TrimSpace(env.GetEnv("PAYMENT_KEY_ID", "")),
		KeySecret:  strings.TrimSpace(env.GetEnv("PAYMENT_KEY_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("PAYMENT_API_BASE_URL", defaultGatewayAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateOrder registers a one-time charge order with the gateway. Notes are
// echoed back verbatim in webhook payloads and carry the user/plan linkage.
func (c *GatewayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if strings.TrimSpace(c.KeyID) == "" || strings.TrimSpace(c.KeySecret) == "" {
		return nil, errors.New("PAYMENT_KEY_ID/PAYMENT_KEY_SECRET are not configured")
	}
	if amount < 0 {
		return nil, fmt.Errorf("order amount must not be negative, got %d", amount)
	}

	body, err := json.Marshal(map[string]interface{}{
		"amount":   amount,
		"currency": strings.ToUpper(strings.TrimSpace(currency)),
		"receipt":  receipt,
		"notes":    notes,
	})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway order create failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var out GatewayOrder
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("gateway order create returned empty order id")
	}
	return &out, nil
}
