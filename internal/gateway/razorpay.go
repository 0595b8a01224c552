// Package gateway wraps the Razorpay REST client behind a small interface so
// payment logic can be tested without network calls.
package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Order is the gateway-side order created before checkout opens.
type Order struct {
	ID       string
	Amount   int64 // smallest currency unit (paise)
	Currency string
	Status   string
}

// Payment is the gateway's record of a completed (or attempted) charge.
type Payment struct {
	ID      string
	OrderID string
	Amount  int64
	Status  string
	Method  string
}

// Gateway is the surface the payment service needs from Razorpay.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (Order, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Razorpay struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	return &Razorpay{
		client: razorpay.NewClient(keyID, keySecret),
		keyID:  keyID,
		secret: keySecret,
	}
}

// KeyID is the public key the browser checkout needs to open the widget.
func (g *Razorpay) KeyID() string { return g.keyID }

// CreateOrder registers an order with Razorpay. The SDK does not take a
// context; ctx is accepted for interface symmetry and honored by callers
// via their own deadlines.
func (g *Razorpay) CreateOrder(_ context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (Order, error) {
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("razorpay create order: %w", err)
	}
	return Order{
		ID:       asString(body["id"]),
		Amount:   asInt64(body["amount"]),
		Currency: asString(body["currency"]),
		Status:   asString(body["status"]),
	}, nil
}

func (g *Razorpay) FetchPayment(_ context.Context, paymentID string) (Payment, error) {
	body, err := g.client.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("razorpay fetch payment: %w", err)
	}
	return Payment{
		ID:      asString(body["id"]),
		OrderID: asString(body["order_id"]),
		Amount:  asInt64(body["amount"]),
		Status:  asString(body["status"]),
		Method:  asString(body["method"]),
	}, nil
}

// VerifySignature checks the HMAC Razorpay sends back after checkout.
func (g *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, g.secret)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asInt64 handles the SDK returning JSON numbers as float64.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
