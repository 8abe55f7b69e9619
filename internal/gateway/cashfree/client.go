// Package cashfree implements the payment gateway port against the Cashfree
// Payment Gateway API (version 2023-08-01).
package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/twcjewels/storefront-api/internal/domain/order"
)

const apiVersion = "2023-08-01"

// Config holds Cashfree credentials and environment settings.
type Config struct {
	// BaseURL selects the environment, e.g. https://sandbox.cashfree.com/pg.
	BaseURL   string
	AppID     string
	SecretKey string
	// ReturnURL is where the hosted checkout sends the customer back;
	// {order_id} is substituted by Cashfree.
	ReturnURL string
	// NotifyURL receives webhook deliveries.
	NotifyURL string
	// MaxAmount caps a single order; sandbox credentials reject anything
	// above ₹5000, and hitting that limit should produce a clear error
	// instead of an opaque gateway rejection. Zero disables the check.
	MaxAmount decimal.Decimal
}

// AmountLimitError reports an order total above the configured gateway cap.
type AmountLimitError struct {
	Amount decimal.Decimal
	Limit  decimal.Decimal
}

func (e *AmountLimitError) Error() string {
	return fmt.Sprintf("order amount ₹%s exceeds the gateway limit of ₹%s", e.Amount, e.Limit)
}

// GatewayError is a non-2xx response from Cashfree, or a transport failure
// reaching it (StatusCode 0).
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("cashfree: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("cashfree: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the Cashfree PG API. It implements order.PaymentGateway.
type Client struct {
	http *http.Client
	cfg  Config
}

// New creates a Cashfree client.
func New(cfg Config) *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		cfg:  cfg,
	}
}

var _ order.PaymentGateway = (*Client)(nil)

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

type createOrderRequest struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     json.Number     `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
	OrderMeta       *orderMeta      `json:"order_meta,omitempty"`
}

type orderResponse struct {
	CFOrderID        json.Number `json:"cf_order_id"`
	OrderID          string      `json:"order_id"`
	OrderAmount      json.Number `json:"order_amount"`
	OrderStatus      string      `json:"order_status"`
	PaymentSessionID string      `json:"payment_session_id"`
	PaymentLink      string      `json:"payment_link"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// CreateSession creates a Cashfree order and returns its payment session.
func (c *Client) CreateSession(ctx context.Context, req order.SessionRequest) (*order.GatewaySession, error) {
	if !c.cfg.MaxAmount.IsZero() && req.Amount.GreaterThan(c.cfg.MaxAmount) {
		return nil, &AmountLimitError{Amount: req.Amount, Limit: c.cfg.MaxAmount}
	}

	body := createOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   json.Number(req.Amount.StringFixed(2)),
		OrderCurrency: "INR",
		CustomerDetails: customerDetails{
			CustomerID:    CustomerID(req.Customer.Email),
			CustomerName:  req.Customer.Name,
			CustomerEmail: req.Customer.Email,
			CustomerPhone: req.Customer.Phone,
		},
	}
	if c.cfg.ReturnURL != "" || c.cfg.NotifyURL != "" {
		body.OrderMeta = &orderMeta{
			ReturnURL: c.cfg.ReturnURL,
			NotifyURL: c.cfg.NotifyURL,
		}
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", body, &resp); err != nil {
		return nil, err
	}

	return &order.GatewaySession{
		PaymentSessionID: resp.PaymentSessionID,
		PaymentLink:      resp.PaymentLink,
		GatewayOrderID:   resp.CFOrderID.String(),
	}, nil
}

// OrderStatus fetches the current gateway-side state of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*order.GatewayStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Code: "CONNECTION_ERROR", Message: err.Error()}
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if httpResp.StatusCode >= 400 {
		return nil, parseError(httpResp.StatusCode, raw)
	}

	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}

	amount, err := decimal.NewFromString(resp.OrderAmount.String())
	if err != nil {
		amount = decimal.Zero
	}

	return &order.GatewayStatus{
		State:          resp.OrderStatus,
		Amount:         amount,
		GatewayOrderID: resp.CFOrderID.String(),
		Raw:            raw,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &GatewayError{Code: "CONNECTION_ERROR", Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "parse response")
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.SecretKey)
	req.Header.Set("x-api-version", apiVersion)
}

func parseError(statusCode int, body []byte) error {
	var e errorResponse
	_ = json.Unmarshal(body, &e)
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return &GatewayError{StatusCode: statusCode, Code: e.Code, Message: e.Message}
}

// CustomerID normalizes an email address into a Cashfree customer_id, which
// only permits alphanumerics, underscore and hyphen.
func CustomerID(email string) string {
	var b strings.Builder
	b.Grow(len(email))
	for _, r := range email {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
