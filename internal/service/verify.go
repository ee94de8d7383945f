package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/signature"
	"course-checkout/internal/store"
)

// PaymentVerifier handles the browser's confirmation after checkout.
type PaymentVerifier struct {
	store        store.Store
	reconciler   *Reconciler
	gateway      gateway.Gateway
	keySecret    string
	fetchTimeout time.Duration
}

func NewPaymentVerifier(st store.Store, rec *Reconciler, gw gateway.Gateway, keySecret string, fetchTimeout time.Duration) *PaymentVerifier {
	if fetchTimeout <= 0 {
		fetchTimeout = 3 * time.Second
	}
	return &PaymentVerifier{
		store:        st,
		reconciler:   rec,
		gateway:      gw,
		keySecret:    keySecret,
		fetchTimeout: fetchTimeout,
	}
}

type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    string
	UserEmail string
}

func (v *PaymentVerifier) VerifyPayment(ctx context.Context, in VerifyInput) (*ReconcileResult, error) {
	orderID := strings.TrimSpace(in.OrderID)
	paymentID := strings.TrimSpace(in.PaymentID)
	sig := strings.TrimSpace(in.Signature)
	if orderID == "" || paymentID == "" || sig == "" {
		return nil, fmt.Errorf("%w: orderId, paymentId and signature are required", ErrBadRequest)
	}
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	if v.keySecret == "" {
		return nil, fmt.Errorf("%w: payment key secret not configured", ErrConfiguration)
	}

	order, err := v.store.FindOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %w", ErrInternal, err)
	}
	if order.UserID != in.UserID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	}

	ok, err := signature.Verify(v.keySecret, signature.PaymentMessage(orderID, paymentID), sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if !ok {
		v.markFailed(ctx, order)
		return nil, ErrVerificationFailed
	}

	method := v.fetchMethod(ctx, orderID, paymentID)

	return v.reconciler.Reconcile(ctx, ReconcileInput{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: &sig,
		Method:    method,
		Via:       billing.SourceVerification,
	})
}

// markFailed only moves a created order; terminal orders keep their status.
func (v *PaymentVerifier) markFailed(ctx context.Context, order *billing.Order) {
	log.Printf("signature mismatch for order %s (user %s)", order.ID, order.UserID)
	if order.Status != billing.OrderCreated {
		return
	}
	if _, err := v.store.TransitionOrder(ctx, order.ID, billing.OrderCreated, billing.OrderUpdate{Status: billing.OrderFailed}); err != nil {
		log.Printf("failed to mark order %s failed: %v", order.ID, err)
	}
}

// fetchMethod asks the gateway for the payment method. It is best effort.
func (v *PaymentVerifier) fetchMethod(ctx context.Context, orderID, paymentID string) *string {
	fetchCtx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()

	p, err := v.gateway.FetchPayment(fetchCtx, paymentID)
	if err != nil {
		log.Printf("payment %s metadata unavailable, continuing: %v", paymentID, err)
		return nil
	}
	if p.OrderID != "" && p.OrderID != orderID {
		log.Printf("ANOMALY: payment %s reports order %s, verified for %s", paymentID, p.OrderID, orderID)
	}
	if p.Method == "" {
		return nil
	}
	return &p.Method
}

// ConfirmFromGateway reconciles an order from the gateway's own record of a
// payment. Operators use it when neither the browser nor the webhook got
// through.
func (v *PaymentVerifier) ConfirmFromGateway(ctx context.Context, orderID, paymentID string) (*ReconcileResult, error) {
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return nil, fmt.Errorf("%w: orderId and paymentId are required", ErrBadRequest)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, v.fetchTimeout)
	defer cancel()
	p, err := v.gateway.FetchPayment(fetchCtx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if p.OrderID != orderID {
		return nil, fmt.Errorf("%w: payment %s belongs to order %q", ErrInvalidState, paymentID, p.OrderID)
	}
	if !gateway.IsSettled(p.Status) {
		return nil, fmt.Errorf("%w: payment %s is %s", ErrInvalidState, paymentID, p.Status)
	}

	var method *string
	if p.Method != "" {
		method = &p.Method
	}
	return v.reconciler.Reconcile(ctx, ReconcileInput{
		OrderID:    orderID,
		PaymentID:  paymentID,
		Method:     method,
		NoteUserID: p.Notes["userId"],
		Via:        billing.SourceAdmin,
	})
}
