package service

import (
	"fmt"
	"testing"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/signature"
	"course-checkout/internal/mocks"
	"course-checkout/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

const (
	keySecret     = "rzp_key_secret"
	webhookSecret = "rzp_webhook_secret"
	buyer         = "user-1"
	courseID      = "go-101"
)

var fixedNow = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *storetest.Memory
	gw       *mocks.MockGateway
	pub      *mocks.RecordingPublisher
	orders   *OrderService
	rec      *Reconciler
	verifier *PaymentVerifier
	webhooks *WebhookProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.NewMemory()
	st.PutCourse(courses.Course{ID: courseID, Title: "Go in Practice", Instructor: "R. Pike", Price: decimal.NewFromInt(999)})

	gw := new(mocks.MockGateway)
	gw.On("KeyID").Return("rzp_test_key").Maybe()

	pub := &mocks.RecordingPublisher{}
	rec := NewReconciler(st, pub)
	return &fixture{
		store:    st,
		gw:       gw,
		pub:      pub,
		orders:   NewOrderService(st, gw, WithOrderClock(func() time.Time { return fixedNow })),
		rec:      rec,
		verifier: NewPaymentVerifier(st, rec, gw, keySecret, time.Second),
		webhooks: NewWebhookProcessor(st, rec, webhookSecret),
	}
}

// seedOrder stores a created order as if CreateOrder had run.
func (f *fixture) seedOrder(orderID, userID string) {
	f.store.PutOrder(billing.Order{
		ID:               orderID,
		CourseID:         courseID,
		UserID:           userID,
		OriginalPrice:    decimal.NewFromInt(999),
		Discount:         decimal.Zero,
		FinalAmountMinor: 99900,
		Currency:         "INR",
		Status:           billing.OrderCreated,
		CreatedAt:        fixedNow,
	})
}

func (f *fixture) expectPaymentFetch(paymentID, orderID, method string) {
	f.gw.On("FetchPayment", mock.Anything, paymentID).Return(&gateway.Payment{
		ID:      paymentID,
		OrderID: orderID,
		Method:  method,
		Status:  gateway.PaymentCaptured,
	}, nil).Maybe()
}

func verifyInput(orderID, paymentID, userID string) VerifyInput {
	return VerifyInput{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature.Sign(keySecret, signature.PaymentMessage(orderID, paymentID)),
		UserID:    userID,
	}
}

func webhookBody(event, orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"entity":"event","event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"method":"upi","status":"captured","amount":99900,"notes":{"userId":%q}}}}}`,
		event, paymentID, orderID, buyer))
}

func delivery(body []byte, eventID string) Delivery {
	return Delivery{Body: body, Signature: signature.Sign(webhookSecret, body), EventID: eventID}
}
