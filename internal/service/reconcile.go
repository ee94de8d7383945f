package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/enrollments"
	"course-checkout/internal/infra/events"
	"course-checkout/internal/store"

	"github.com/google/uuid"
)

const maxReconcileAttempts = 3

// Reconciler finalizes a verified payment: it moves the order to a terminal
// success status and makes sure exactly one enrollment exists for the
// order's (user, course). It is safe to call repeatedly and concurrently for
// the same order from any path.
type Reconciler struct {
	store          store.Store
	publisher      events.Publisher
	now            func() time.Time
	publishTimeout time.Duration
}

func NewReconciler(st store.Store, pub events.Publisher) *Reconciler {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Reconciler{
		store:          st,
		publisher:      pub,
		now:            time.Now,
		publishTimeout: 5 * time.Second,
	}
}

type ReconcileInput struct {
	OrderID   string
	PaymentID string
	Signature *string
	Method    *string
	// NoteUserID is the user id the gateway echoed back from the order
	// notes, used to cross-check webhooks that carry no caller identity.
	NoteUserID string
	Via        billing.Source
}

type ReconcileResult struct {
	EnrollmentID     string `json:"enrollmentId"`
	OrderID          string `json:"orderId"`
	CourseID         string `json:"courseId"`
	UserID           string `json:"userId"`
	AlreadyProcessed bool   `json:"alreadyProcessed"`
}

type reconcileOutcome struct {
	result     ReconcileResult
	order      billing.Order
	transition bool
	created    *enrollments.Enrollment
}

func (r *Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	if in.OrderID == "" || in.PaymentID == "" {
		return nil, fmt.Errorf("%w: orderId and paymentId are required", ErrBadRequest)
	}

	var (
		out *reconcileOutcome
		err error
	)
	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		out, err = r.reconcileOnce(ctx, in)
		if !errors.Is(err, errConcurrentUpdate) {
			break
		}
		log.Printf("reconcile %s: lost a concurrent update, retrying (%d/%d)", in.OrderID, attempt, maxReconcileAttempts)
	}
	if err != nil {
		if errors.Is(err, ErrAnomaly) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: reconcile %s: %w", ErrInternal, in.OrderID, err)
	}

	r.afterCommit(ctx, in, out)
	res := out.result
	return &res, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, in ReconcileInput) (*reconcileOutcome, error) {
	out := &reconcileOutcome{}
	err := r.store.InTx(ctx, func(tx store.Store) error {
		order, err := tx.LockOrder(ctx, in.OrderID)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("ANOMALY: reconcile via %s for unknown order %s (payment %s)", in.Via, in.OrderID, in.PaymentID)
			return fmt.Errorf("%w: order %s not found", ErrAnomaly, in.OrderID)
		}
		if err != nil {
			return err
		}
		if in.NoteUserID != "" && in.NoteUserID != order.UserID {
			log.Printf("ANOMALY: order %s belongs to %s but gateway notes say %s", order.ID, order.UserID, in.NoteUserID)
		}

		if order.Status.IsTerminalSuccess() {
			if order.PaymentID != nil && *order.PaymentID != in.PaymentID {
				log.Printf("ANOMALY: order %s already settled by payment %s, got %s via %s",
					order.ID, *order.PaymentID, in.PaymentID, in.Via)
			}
			if err := tx.AnnotateOrder(ctx, order.ID, billing.OrderAnnotation{
				WebhookReceived: in.Via == billing.SourceWebhook,
				PaymentID:       &in.PaymentID,
				PaymentMethod:   in.Method,
			}); err != nil {
				return err
			}
			paymentID := in.PaymentID
			if order.PaymentID != nil {
				paymentID = *order.PaymentID
			}
			enr, created, err := r.ensureEnrollment(ctx, tx, order, paymentID, in)
			if err != nil {
				return err
			}
			if created {
				log.Printf("re-derived missing enrollment %s for terminal order %s", enr.ID, order.ID)
				out.created = enr
			}
			out.order = *order
			out.result = resultFor(order, enr, true)
			return nil
		}

		now := r.now()
		target := in.Via.TerminalStatus()
		applied, err := tx.TransitionOrder(ctx, order.ID, order.Status, billing.OrderUpdate{
			Status:          target,
			PaymentID:       &in.PaymentID,
			Signature:       in.Signature,
			PaymentMethod:   in.Method,
			WebhookReceived: in.Via == billing.SourceWebhook,
			PaidAt:          &now,
		})
		if err != nil {
			return err
		}
		if !applied {
			return errConcurrentUpdate
		}
		order.Status = target
		order.PaymentID = &in.PaymentID
		order.PaymentMethod = in.Method
		order.PaidAt = &now

		enr, created, err := r.ensureEnrollment(ctx, tx, order, in.PaymentID, in)
		if err != nil {
			return err
		}
		if created {
			out.created = enr
		}
		out.transition = true
		out.order = *order
		out.result = resultFor(order, enr, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ensureEnrollment reuses an existing (user, course) enrollment or creates
// one. A unique-index conflict means another path won; its row is reused.
func (r *Reconciler) ensureEnrollment(ctx context.Context, tx store.Store, order *billing.Order, paymentID string, in ReconcileInput) (*enrollments.Enrollment, bool, error) {
	existing, err := tx.FindEnrollment(ctx, order.UserID, order.CourseID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	courseName := order.CourseID
	if course, err := tx.FindCourse(ctx, order.CourseID); err == nil {
		courseName = course.Title
	} else {
		log.Printf("enrollment for order %s: course %s lookup failed: %v", order.ID, order.CourseID, err)
	}

	method := in.Method
	if method == nil {
		method = order.PaymentMethod
	}

	now := r.now()
	orderID := order.ID
	enr := &enrollments.Enrollment{
		ID:            uuid.NewString(),
		UserID:        order.UserID,
		CourseID:      order.CourseID,
		CourseName:    courseName,
		Status:        enrollments.StatusActive,
		Progress:      0,
		PaymentID:     &paymentID,
		OrderID:       &orderID,
		AmountPaid:    order.AmountPaid(),
		PaymentMethod: method,
		Source:        string(in.Via),
		EnrolledAt:    now,
		UpdatedAt:     now,
	}
	err = tx.CreateEnrollment(ctx, enr)
	if errors.Is(err, store.ErrDuplicate) {
		existing, err := tx.FindEnrollment(ctx, order.UserID, order.CourseID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return enr, true, nil
}

// afterCommit writes the payment audit row and announces new enrollments.
// Failures are logged only; the enrollment is already committed.
func (r *Reconciler) afterCommit(ctx context.Context, in ReconcileInput, out *reconcileOutcome) {
	if out.transition || out.created != nil {
		r.appendPayment(ctx, in, &out.order)
	}
	if out.created != nil {
		r.publishEnrollment(ctx, &out.order, out.created)
	}
}

func (r *Reconciler) appendPayment(ctx context.Context, in ReconcileInput, order *billing.Order) {
	paymentID := in.PaymentID
	if order.PaymentID != nil {
		paymentID = *order.PaymentID
	}
	method := in.Method
	if method == nil {
		method = order.PaymentMethod
	}
	err := r.store.AppendPayment(ctx, &billing.Payment{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		PaymentID:   paymentID,
		UserID:      order.UserID,
		CourseID:    order.CourseID,
		AmountMinor: order.FinalAmountMinor,
		Currency:    order.Currency,
		Method:      method,
		Source:      in.Via,
		CreatedAt:   r.now(),
	})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		log.Printf("payment audit for order %s failed: %v", order.ID, err)
	}
}

func (r *Reconciler) publishEnrollment(ctx context.Context, order *billing.Order, enr *enrollments.Enrollment) {
	evt := events.EnrollmentCreated{
		EnrollmentID: enr.ID,
		OrderID:      order.ID,
		UserID:       enr.UserID,
		CourseID:     enr.CourseID,
		AmountPaid:   enr.AmountPaid.StringFixed(2),
		Currency:     order.Currency,
		Source:       enr.Source,
		EnrolledAt:   enr.EnrolledAt,
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.publishTimeout)
	go func() {
		defer cancel()
		if err := r.publisher.Publish(pubCtx, events.EnrollmentCreatedPattern, evt); err != nil {
			log.Printf("Failed to publish %s for enrollment %s: %v", events.EnrollmentCreatedPattern, enr.ID, err)
		}
	}()
}

func resultFor(order *billing.Order, enr *enrollments.Enrollment, already bool) ReconcileResult {
	return ReconcileResult{
		EnrollmentID:     enr.ID,
		OrderID:          order.ID,
		CourseID:         order.CourseID,
		UserID:           order.UserID,
		AlreadyProcessed: already,
	}
}
