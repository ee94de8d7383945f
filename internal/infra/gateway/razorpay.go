package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay is a Gateway backed by the Razorpay REST API.
type Razorpay struct {
	keyID    string
	orders   orderAPI
	payments paymentAPI
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := razorpay.NewClient(keyID, keySecret)
	return &Razorpay{keyID: keyID, orders: client.Order, payments: client.Payment}
}

func (r *Razorpay) KeyID() string { return r.keyID }

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	body := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	resp, err := call(ctx, func() (map[string]interface{}, error) {
		return r.orders.Create(body, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %w", ErrUpstream, err)
	}
	o := orderFromResponse(resp)
	if o.ID == "" {
		return nil, fmt.Errorf("%w: create order: response has no id", ErrUpstream)
	}
	return o, nil
}

func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	resp, err := call(ctx, func() (map[string]interface{}, error) {
		return r.payments.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch payment %s: %w", ErrUpstream, paymentID, err)
	}
	return paymentFromResponse(resp), nil
}

// call runs fn and gives up when ctx ends; the SDK has no context support,
// so an abandoned request finishes in the background.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		body, err := fn()
		done <- result{body, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.body, res.err
	}
}

func orderFromResponse(m map[string]interface{}) *Order {
	return &Order{
		ID:          str(m["id"]),
		AmountMinor: minor(m["amount"]),
		Currency:    str(m["currency"]),
		Receipt:     str(m["receipt"]),
		Status:      str(m["status"]),
	}
}

func paymentFromResponse(m map[string]interface{}) *Payment {
	return &Payment{
		ID:          str(m["id"]),
		OrderID:     str(m["order_id"]),
		Method:      str(m["method"]),
		Status:      NormalizePaymentStatus(str(m["status"])),
		Email:       str(m["email"]),
		AmountMinor: minor(m["amount"]),
		Notes:       NotesFrom(m["notes"]),
	}
}

// NotesFrom flattens gateway notes. The API sends an empty JSON array instead
// of an object when no notes were attached.
func NotesFrom(v interface{}) map[string]string {
	out := map[string]string{}
	m, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for k, val := range m {
		if s := str(val); s != "" {
			out[k] = s
		}
	}
	return out
}

func str(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func minor(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	default:
		return 0
	}
}
