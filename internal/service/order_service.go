package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/infra/gateway"
	"course-checkout/internal/store"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CourseFinder is satisfied by the store and by the redis course cache.
type CourseFinder interface {
	FindCourse(ctx context.Context, id string) (*courses.Course, error)
}

type OrderService struct {
	store          store.Store
	courses        CourseFinder
	gateway        gateway.Gateway
	currency       string
	minAmountMinor int64
	now            func() time.Time
}

type OrderServiceOption func(*OrderService)

func WithCourseFinder(f CourseFinder) OrderServiceOption {
	return func(s *OrderService) { s.courses = f }
}

func WithCurrency(currency string) OrderServiceOption {
	return func(s *OrderService) { s.currency = strings.ToUpper(currency) }
}

func WithMinAmountMinor(min int64) OrderServiceOption {
	return func(s *OrderService) { s.minAmountMinor = min }
}

func WithOrderClock(now func() time.Time) OrderServiceOption {
	return func(s *OrderService) { s.now = now }
}

func NewOrderService(st store.Store, gw gateway.Gateway, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		store:          st,
		courses:        st,
		gateway:        gw,
		currency:       "INR",
		minAmountMinor: billing.DefaultMinAmountMinor,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateOrderInput struct {
	UserID     string
	UserEmail  string
	CourseID   string
	CouponCode *string
}

type CourseSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Instructor string `json:"instructor,omitempty"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// OrderView is what the browser needs to open the gateway checkout.
type OrderView struct {
	OrderID       string          `json:"orderId"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	KeyID         string          `json:"keyId"`
	Receipt       string          `json:"receipt"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Discount      decimal.Decimal `json:"discount"`
	FinalPrice    decimal.Decimal `json:"finalPrice"`
	CouponCode    *string         `json:"couponCode,omitempty"`
	Course        CourseSummary   `json:"courseDetails"`
}

// CreateOrder prices the course, mints a gateway order and stores it as
// created. Nothing is written before the gateway call succeeds.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderView, error) {
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}
	courseID := strings.TrimSpace(in.CourseID)
	if courseID == "" {
		return nil, fmt.Errorf("%w: courseId is required", ErrBadRequest)
	}

	course, err := s.courses.FindCourse(ctx, courseID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: course %s", ErrNotFound, courseID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load course: %w", ErrInternal, err)
	}
	if course.IsUnpublished() {
		return nil, fmt.Errorf("%w: course %s is not published", ErrInvalidState, courseID)
	}

	now := s.now()
	quote := billing.PriceCourse(course.Price, s.lookupCoupon(ctx, in.CouponCode), now)
	if quote.AmountMinor < s.minAmountMinor {
		return nil, fmt.Errorf("%w: %d is below the minimum of %d", ErrInvalidAmount, quote.AmountMinor, s.minAmountMinor)
	}

	currency := s.currency
	if course.Currency != "" {
		currency = strings.ToUpper(course.Currency)
	}

	notes := map[string]string{
		"userId":    in.UserID,
		"courseId":  course.ID,
		"userEmail": in.UserEmail,
	}
	if quote.CouponCode != nil {
		notes["couponCode"] = *quote.CouponCode
	}

	receipt := billing.ReceiptID(now, course.ID)
	minted, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: quote.AmountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Notes:       notes,
	})
	if err != nil {
		log.Printf("gateway order creation failed for course %s: %v", course.ID, err)
		return nil, fmt.Errorf("%w: %w: %w", ErrInternal, ErrUpstreamUnavailable, err)
	}

	order := &billing.Order{
		ID:               minted.ID,
		CourseID:         course.ID,
		UserID:           in.UserID,
		UserEmail:        in.UserEmail,
		OriginalPrice:    quote.Original,
		Discount:         quote.Discount,
		FinalAmountMinor: quote.AmountMinor,
		Currency:         currency,
		CouponCode:       quote.CouponCode,
		Receipt:          receipt,
		Notes:            notesMap(notes),
		Status:           billing.OrderCreated,
		CreatedAt:        now,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		log.Printf("ANOMALY: gateway order %s minted but not stored (user %s, course %s): %v",
			minted.ID, in.UserID, course.ID, err)
		return nil, fmt.Errorf("%w: persist order: %w", ErrInternal, err)
	}

	return &OrderView{
		OrderID:       minted.ID,
		Amount:        quote.AmountMinor,
		Currency:      currency,
		KeyID:         s.gateway.KeyID(),
		Receipt:       receipt,
		OriginalPrice: quote.Original,
		Discount:      quote.Discount,
		FinalPrice:    quote.Final,
		CouponCode:    quote.CouponCode,
		Course: CourseSummary{
			ID:         course.ID,
			Title:      course.Title,
			Instructor: course.Instructor,
			Thumbnail:  course.Thumbnail,
		},
	}, nil
}

// lookupCoupon never fails checkout; unknown codes and lookup errors both
// mean no discount.
func (s *OrderService) lookupCoupon(ctx context.Context, code *string) *courses.Coupon {
	if code == nil {
		return nil
	}
	normalized := courses.NormalizeCode(*code)
	if normalized == "" {
		return nil
	}
	coupon, err := s.store.FindCoupon(ctx, normalized)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("coupon lookup %s failed, continuing at full price: %v", normalized, err)
		}
		return nil
	}
	return coupon
}

type OrderStatusView struct {
	OrderID         string              `json:"orderId"`
	CourseID        string              `json:"courseId"`
	Status          billing.OrderStatus `json:"status"`
	Amount          int64               `json:"amount"`
	Currency        string              `json:"currency"`
	PaymentID       *string             `json:"paymentId,omitempty"`
	WebhookReceived bool                `json:"webhookReceived"`
	CreatedAt       time.Time           `json:"createdAt"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
}

// GetOrder returns the order only to its owner.
func (s *OrderService) GetOrder(ctx context.Context, orderID, callerID string) (*OrderStatusView, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	o, err := s.store.FindOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load order: %w", ErrInternal, err)
	}
	if o.UserID != callerID {
		return nil, fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	}
	return &OrderStatusView{
		OrderID:         o.ID,
		CourseID:        o.CourseID,
		Status:          o.Status,
		Amount:          o.FinalAmountMinor,
		Currency:        o.Currency,
		PaymentID:       o.PaymentID,
		WebhookReceived: o.WebhookReceived,
		CreatedAt:       o.CreatedAt,
		PaidAt:          o.PaidAt,
	}, nil
}

func notesMap(notes map[string]string) datatypes.JSONMap {
	m := make(datatypes.JSONMap, len(notes))
	for k, v := range notes {
		m[k] = v
	}
	return m
}
