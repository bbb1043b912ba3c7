// Package gateway talks to Razorpay for orders and refunds.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/razorpay/razorpay-go"
)

// Razorpay creates orders and refunds through the Razorpay API
type Razorpay struct {
	client *razorpay.Client
	key    string
	secret string
}

func NewRazorpay(key, secret string) *Razorpay {
	return &Razorpay{
		client: razorpay.NewClient(key, secret),
		key:    key,
		secret: secret,
	}
}

// KeyID is the public key handed to the checkout widget
func (r *Razorpay) KeyID() string {
	return r.key
}

// ToPaise converts rupees to the smallest currency unit Razorpay expects
func ToPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateOrder registers an order for amount and returns its Razorpay ID
func (r *Razorpay) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data := map[string]interface{}{
		"amount":   ToPaise(amount),
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	order, err := r.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order: %w", err)
	}
	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", errors.New("razorpay order: response has no id")
	}
	return id, nil
}

// Refund refunds amount of a captured payment and returns the refund ID
func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	refund, err := r.client.Payment.Refund(paymentID, int(ToPaise(amount)), nil, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay refund: %w", err)
	}
	id, ok := refund["id"].(string)
	if !ok || id == "" {
		return "", errors.New("razorpay refund: response has no id")
	}
	return id, nil
}

// VerifySignature checks the checkout signature over "order_id|payment_id"
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(Sign(r.secret, orderID, paymentID)), []byte(signature))
}

// Sign computes the signature Razorpay attaches to a successful checkout
func Sign(secret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}
