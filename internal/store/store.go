// Package store persists courses, orders, enrollments and the payment audit
// trail. Every write the checkout core depends on is either conditional or
// guarded by a unique index, so callers never need an in-process lock.
package store

import (
	"context"
	"errors"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/domain/enrollments"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

type Catalog interface {
	FindCourse(ctx context.Context, id string) (*courses.Course, error)
	FindCoupon(ctx context.Context, code string) (*courses.Coupon, error)
	UpsertCourse(ctx context.Context, c *courses.Course) error
}

type Orders interface {
	CreateOrder(ctx context.Context, o *billing.Order) error
	FindOrder(ctx context.Context, id string) (*billing.Order, error)
	// LockOrder reads the order and holds a row lock until the surrounding
	// transaction ends.
	LockOrder(ctx context.Context, id string) (*billing.Order, error)
	// TransitionOrder applies u only while the order still has status from.
	// It reports whether the write happened.
	TransitionOrder(ctx context.Context, id string, from billing.OrderStatus, u billing.OrderUpdate) (bool, error)
	AnnotateOrder(ctx context.Context, id string, a billing.OrderAnnotation) error
	ListOrders(ctx context.Context, f OrderFilter) ([]billing.Order, error)
	// ListOrphanedOrders returns terminal-success orders that have no
	// enrollment for their (user, course).
	ListOrphanedOrders(ctx context.Context, limit int) ([]billing.Order, error)
}

type Enrollments interface {
	FindEnrollment(ctx context.Context, userID, courseID string) (*enrollments.Enrollment, error)
	// CreateEnrollment returns ErrDuplicate when (user, course) already exists.
	CreateEnrollment(ctx context.Context, e *enrollments.Enrollment) error
}

type Payments interface {
	AppendPayment(ctx context.Context, p *billing.Payment) error
	ListPayments(ctx context.Context, limit int) ([]billing.Payment, error)
}

type WebhookEvents interface {
	// RecordWebhookEvent returns ErrDuplicate for an event id seen before.
	RecordWebhookEvent(ctx context.Context, e *billing.WebhookEvent) error
	FindWebhookEvent(ctx context.Context, eventID string) (*billing.WebhookEvent, error)
	FinishWebhookEvent(ctx context.Context, eventID, outcome, errMsg string) error
}

type Store interface {
	Catalog
	Orders
	Enrollments
	Payments
	WebhookEvents

	// InTx runs fn inside one transaction; every write made through tx
	// commits together or not at all.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

type OrderFilter struct {
	Status billing.OrderStatus
	UserID string
	Limit  int
}
