// Package gateway talks to the payment gateway that mints orders and reports
// payments.
package gateway

import (
	"context"
	"errors"
)

// ErrUpstream wraps every failure returned by the gateway API.
var ErrUpstream = errors.New("gateway: upstream error")

type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

type Payment struct {
	ID          string
	OrderID     string
	Method      string
	Status      string
	Email       string
	AmountMinor int64
	Notes       map[string]string
}

// Gateway is the subset of the payment gateway used by checkout.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*Payment, error)
	// KeyID is the public key the browser checkout widget is opened with.
	KeyID() string
}
