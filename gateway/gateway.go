// Package gateway creates hosted payment pages at third-party crypto gateways.
package gateway

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

	"luxio/models"
)

var (
	ErrNotConfigured = errors.New("payment gateway not configured")
	ErrNoPaymentURL  = errors.New("gateway returned no payment url")
)

type Invoice struct {
	Reference   string
	Amount      float64
	Currency    string
	Description string
	Email       string
	Name        string
	SuccessURL  string
	CancelURL   string
	// CallbackURL receives payment notifications. Only NowPayments uses it.
	CallbackURL string
}

type Gateway interface {
	CreateInvoice(ctx context.Context, inv Invoice) (paymentURL string, err error)
}

// Registry maps a payment method to its gateway.
type Registry map[models.PaymentMethod]Gateway

func (r Registry) For(method models.PaymentMethod) (Gateway, error) {
	g, ok := r[method]
	if !ok || g == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, method)
	}
	return g, nil
}

func defaultHTTPClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("invoice request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode invoice response: %w", err)
	}
	return nil
}

type NowPayments struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewNowPayments(baseURL, apiKey string, hc *http.Client) *NowPayments {
	return &NowPayments{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: defaultHTTPClient(hc)}
}

func (n *NowPayments) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	if n.apiKey == "" {
		return "", ErrNotConfigured
	}
	body := map[string]any{
		"price_amount":      inv.Amount,
		"price_currency":    strings.ToLower(inv.Currency),
		"order_id":          inv.Reference,
		"order_description": inv.Description,
		"success_url":       inv.SuccessURL,
		"cancel_url":        inv.CancelURL,
	}
	if inv.CallbackURL != "" {
		body["ipn_callback_url"] = inv.CallbackURL
	}
	var resp struct {
		ID         string `json:"id"`
		InvoiceURL string `json:"invoice_url"`
	}
	if err := postJSON(ctx, n.http, n.baseURL+"/v1/invoice", map[string]string{"x-api-key": n.apiKey}, body, &resp); err != nil {
		return "", fmt.Errorf("nowpayments: %w", err)
	}
	if resp.InvoiceURL == "" {
		return "", ErrNoPaymentURL
	}
	return resp.InvoiceURL, nil
}

type MaxelPay struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewMaxelPay(baseURL, apiKey string, hc *http.Client) *MaxelPay {
	return &MaxelPay{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: defaultHTTPClient(hc)}
}

func (m *MaxelPay) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	if m.apiKey == "" {
		return "", ErrNotConfigured
	}
	body := map[string]any{
		"orderID":     inv.Reference,
		"amount":      fmt.Sprintf("%.2f", inv.Amount),
		"currency":    strings.ToUpper(inv.Currency),
		"timestamp":   time.Now().Unix(),
		"userName":    inv.Name,
		"userEmail":   inv.Email,
		"siteName":    "Luxio",
		"redirectUrl": inv.SuccessURL,
		"cancelUrl":   inv.CancelURL,
	}
	var resp struct {
		Result string `json:"result"`
	}
	if err := postJSON(ctx, m.http, m.baseURL+"/v1/prod/merchant/order/checkout", map[string]string{"api-key": m.apiKey}, body, &resp); err != nil {
		return "", fmt.Errorf("maxelpay: %w", err)
	}
	if resp.Result == "" {
		return "", ErrNoPaymentURL
	}
	return resp.Result, nil
}
