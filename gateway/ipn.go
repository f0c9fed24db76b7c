package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// HeaderNowPaymentsSig carries the IPN signature.
const HeaderNowPaymentsSig = "x-nowpayments-sig"

var ErrBadSignature = errors.New("invalid ipn signature")

// NowPaymentsIPN is the instant payment notification NowPayments posts when a payment
// changes state.
type NowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PriceAmount   json.Number `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
}

// Paid reports whether the payment reached the merchant.
func (n NowPaymentsIPN) Paid() bool {
	return n.PaymentStatus == "finished" || n.PaymentStatus == "confirmed"
}

// Failed reports whether the payment can no longer complete.
func (n NowPaymentsIPN) Failed() bool {
	switch n.PaymentStatus {
	case "failed", "expired", "refunded":
		return true
	}
	return false
}

// canonicalJSON re-encodes body with object keys sorted at every level, which is
// what NowPayments signs.
func canonicalJSON(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode ipn: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode ipn: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SignNowPaymentsIPN returns the hex HMAC-SHA512 of the canonical body.
func SignNowPaymentsIPN(secret string, body []byte) (string, error) {
	canonical, err := canonicalJSON(body)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyNowPaymentsIPN checks signature against body and decodes the notification.
func VerifyNowPaymentsIPN(secret string, body []byte, signature string) (*NowPaymentsIPN, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	want, err := SignNowPaymentsIPN(secret, body)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return nil, ErrBadSignature
	}

	var ipn NowPaymentsIPN
	if err := json.Unmarshal(body, &ipn); err != nil {
		return nil, fmt.Errorf("decode ipn: %w", err)
	}
	if ipn.OrderID == "" {
		return nil, errors.New("ipn without order_id")
	}
	return &ipn, nil
}
