package mocks

import (
	"context"
	"sync"

	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/infra/stripe"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Payment), args.Error(1)
}

func (m *MockGateway) KeyID() string {
	args := m.Called()
	return args.String(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

// RecordingPublisher keeps every published message; safe for the async
// publish goroutines.
type RecordingPublisher struct {
	mu       sync.Mutex
	Messages []Published
}

type Published struct {
	Pattern string
	Data    interface{}
}

func (p *RecordingPublisher) Publish(_ context.Context, pattern string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Published{Pattern: pattern, Data: data})
	return nil
}

func (p *RecordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Messages)
}

func (p *RecordingPublisher) Snapshot() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.Messages...)
}

type MockPriceCatalog struct {
	mock.Mock
}

func (m *MockPriceCatalog) ListCoursePrices(ctx context.Context) ([]stripe.CoursePrice, int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]stripe.CoursePrice), args.Int(1), args.Error(2)
}
