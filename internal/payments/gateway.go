package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
)

type GatewayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's view of a checkout order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
}

// RazorpayClient talks to the Razorpay Orders API with basic auth.
type RazorpayClient struct {
	Client    *http.Client
	BaseURL   string
	KeyID     string
	KeySecret string
}

func NewRazorpayClient(baseURL, keyID, keySecret string) *RazorpayClient {
	return &RazorpayClient{
		Client:    &http.Client{Timeout: 10 * time.Second},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		KeyID:     keyID,
		KeySecret: keySecret,
	}
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, in GatewayOrderRequest) (*GatewayOrder, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream("payment gateway rejected the order",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Upstream("payment gateway returned an invalid response", err)
	}
	if out.ID == "" {
		return nil, apperr.Upstream("payment gateway returned an invalid response", fmt.Errorf("missing order id"))
	}
	return &out, nil
}
