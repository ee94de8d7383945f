// Package storetest provides an in-memory store.Store with the same
// conditional-write and uniqueness semantics as the gorm store. Transactions
// are serialised and rolled back on error.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/domain/enrollments"
	"course-checkout/internal/store"
)

type data struct {
	courses     map[string]courses.Course
	coupons     map[string]courses.Coupon
	orders      map[string]billing.Order
	enrollments map[string]enrollments.Enrollment
	payments    map[string]billing.Payment
	events      map[string]billing.WebhookEvent
	nextEventID uint
}

func newData() *data {
	return &data{
		courses:     map[string]courses.Course{},
		coupons:     map[string]courses.Coupon{},
		orders:      map[string]billing.Order{},
		enrollments: map[string]enrollments.Enrollment{},
		payments:    map[string]billing.Payment{},
		events:      map[string]billing.WebhookEvent{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.courses {
		c.courses[k] = v
	}
	for k, v := range d.coupons {
		c.coupons[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	c.nextEventID = d.nextEventID
	return c
}

type shared struct {
	txMu     sync.Mutex
	mu       sync.Mutex
	d        *data
	failures map[string]error

	// interleave runs inside the next TransitionOrder as another
	// transaction committing first; committed keeps such writes alive
	// across a rollback of the losing transaction.
	interleave func(d *data)
	committed  []func(d *data)
}

// Memory is safe for concurrent use.
type Memory struct {
	s    *shared
	inTx bool
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{s: &shared{d: newData(), failures: map[string]error{}}}
}

// FailNext makes the next call of the named method (e.g. "CreateOrder")
// return err.
func (m *Memory) FailNext(method string, err error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.failures[method] = err
}

// CommitBeforeNextTransition makes the next TransitionOrder see o (and e,
// when non-nil) as committed by a concurrent transaction just before its
// conditional write.
func (m *Memory) CommitBeforeNextTransition(o billing.Order, e *enrollments.Enrollment) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.interleave = func(d *data) {
		d.orders[o.ID] = o
		if e != nil {
			d.enrollments[e.ID] = *e
		}
	}
}

func (m *Memory) injected(method string) error {
	if err, ok := m.s.failures[method]; ok {
		delete(m.s.failures, method)
		return err
	}
	return nil
}

func (m *Memory) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	snapshot := m.s.d.clone()
	m.s.mu.Unlock()

	err := fn(&Memory{s: m.s, inTx: true})

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err != nil {
		m.s.d = snapshot
		for _, w := range m.s.committed {
			w(m.s.d)
		}
	}
	m.s.committed = nil
	return err
}

func (m *Memory) Ping(ctx context.Context) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.injected("Ping")
}

// ---- seeding helpers ----

func (m *Memory) PutCourse(c courses.Course) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.d.courses[c.ID] = c
}

func (m *Memory) PutCoupon(c courses.Coupon) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.Code = courses.NormalizeCode(c.Code)
	m.s.d.coupons[c.Code] = c
}

func (m *Memory) PutOrder(o billing.Order) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.d.orders[o.ID] = o
}

func (m *Memory) PutEnrollment(e enrollments.Enrollment) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.d.enrollments[e.ID] = e
}

// Enrollments returns every enrollment for (userID, courseID).
func (m *Memory) Enrollments(userID, courseID string) []enrollments.Enrollment {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []enrollments.Enrollment
	for _, e := range m.s.d.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) Payments() []billing.Payment {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]billing.Payment, 0, len(m.s.d.payments))
	for _, p := range m.s.d.payments {
		out = append(out, p)
	}
	return out
}

// ---- catalog ----

func (m *Memory) FindCourse(ctx context.Context, id string) (*courses.Course, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("FindCourse"); err != nil {
		return nil, err
	}
	c, ok := m.s.d.courses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) FindCoupon(ctx context.Context, code string) (*courses.Coupon, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("FindCoupon"); err != nil {
		return nil, err
	}
	c, ok := m.s.d.coupons[courses.NormalizeCode(code)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (m *Memory) UpsertCourse(ctx context.Context, c *courses.Course) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("UpsertCourse"); err != nil {
		return err
	}
	now := time.Now()
	if existing, ok := m.s.d.courses[c.ID]; ok {
		existing.Title = c.Title
		existing.Price = c.Price
		existing.Currency = c.Currency
		existing.Published = c.Published
		existing.StripePriceID = c.StripePriceID
		existing.UpdatedAt = now
		m.s.d.courses[c.ID] = existing
		return nil
	}
	c.CreatedAt, c.UpdatedAt = now, now
	m.s.d.courses[c.ID] = *c
	return nil
}

// ---- orders ----

func (m *Memory) CreateOrder(ctx context.Context, o *billing.Order) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("CreateOrder"); err != nil {
		return err
	}
	if _, ok := m.s.d.orders[o.ID]; ok {
		return store.ErrDuplicate
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	m.s.d.orders[o.ID] = *o
	return nil
}

func (m *Memory) FindOrder(ctx context.Context, id string) (*billing.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("FindOrder"); err != nil {
		return nil, err
	}
	o, ok := m.s.d.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *Memory) LockOrder(ctx context.Context, id string) (*billing.Order, error) {
	return m.FindOrder(ctx, id)
}

func (m *Memory) TransitionOrder(ctx context.Context, id string, from billing.OrderStatus, u billing.OrderUpdate) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("TransitionOrder"); err != nil {
		return false, err
	}
	if w := m.s.interleave; w != nil {
		m.s.interleave = nil
		w(m.s.d)
		if m.inTx {
			m.s.committed = append(m.s.committed, w)
		}
	}
	o, ok := m.s.d.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = u.Status
	if u.PaymentID != nil {
		o.PaymentID = strPtr(*u.PaymentID)
	}
	if u.Signature != nil {
		o.Signature = strPtr(*u.Signature)
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = strPtr(*u.PaymentMethod)
	}
	if u.WebhookReceived {
		o.WebhookReceived = true
	}
	if u.PaidAt != nil {
		t := *u.PaidAt
		o.PaidAt = &t
	}
	o.UpdatedAt = time.Now()
	m.s.d.orders[id] = o
	return true, nil
}

func (m *Memory) AnnotateOrder(ctx context.Context, id string, a billing.OrderAnnotation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("AnnotateOrder"); err != nil {
		return err
	}
	o, ok := m.s.d.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	if a.WebhookReceived {
		o.WebhookReceived = true
	}
	if o.PaymentID == nil && a.PaymentID != nil && *a.PaymentID != "" {
		o.PaymentID = strPtr(*a.PaymentID)
	}
	if o.PaymentMethod == nil && a.PaymentMethod != nil && *a.PaymentMethod != "" {
		o.PaymentMethod = strPtr(*a.PaymentMethod)
	}
	o.UpdatedAt = time.Now()
	m.s.d.orders[id] = o
	return nil
}

func (m *Memory) ListOrders(ctx context.Context, f store.OrderFilter) ([]billing.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []billing.Order
	for _, o := range m.s.d.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListOrphanedOrders(ctx context.Context, limit int) ([]billing.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []billing.Order
	for _, o := range m.s.d.orders {
		if !o.Status.IsTerminalSuccess() {
			continue
		}
		if m.hasEnrollmentLocked(o.UserID, o.CourseID) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- enrollments ----

func (m *Memory) hasEnrollmentLocked(userID, courseID string) bool {
	for _, e := range m.s.d.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return true
		}
	}
	return false
}

func (m *Memory) FindEnrollment(ctx context.Context, userID, courseID string) (*enrollments.Enrollment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("FindEnrollment"); err != nil {
		return nil, err
	}
	for _, e := range m.s.d.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			found := e
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) CreateEnrollment(ctx context.Context, e *enrollments.Enrollment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("CreateEnrollment"); err != nil {
		return err
	}
	if m.hasEnrollmentLocked(e.UserID, e.CourseID) {
		return store.ErrDuplicate
	}
	if _, ok := m.s.d.enrollments[e.ID]; ok {
		return store.ErrDuplicate
	}
	m.s.d.enrollments[e.ID] = *e
	return nil
}

// ---- payments ----

func (m *Memory) AppendPayment(ctx context.Context, p *billing.Payment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("AppendPayment"); err != nil {
		return err
	}
	for _, existing := range m.s.d.payments {
		if existing.PaymentID == p.PaymentID {
			return store.ErrDuplicate
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.s.d.payments[p.ID] = *p
	return nil
}

func (m *Memory) ListPayments(ctx context.Context, limit int) ([]billing.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]billing.Payment, 0, len(m.s.d.payments))
	for _, p := range m.s.d.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- webhook events ----

func (m *Memory) RecordWebhookEvent(ctx context.Context, e *billing.WebhookEvent) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if err := m.injected("RecordWebhookEvent"); err != nil {
		return err
	}
	if _, ok := m.s.d.events[e.EventID]; ok {
		return store.ErrDuplicate
	}
	m.s.d.nextEventID++
	e.ID = m.s.d.nextEventID
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Outcome == "" {
		e.Outcome = billing.WebhookOutcomeReceived
	}
	m.s.d.events[e.EventID] = *e
	return nil
}

func (m *Memory) FindWebhookEvent(ctx context.Context, eventID string) (*billing.WebhookEvent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.d.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (m *Memory) FinishWebhookEvent(ctx context.Context, eventID, outcome, errMsg string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.d.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	e.Outcome = outcome
	e.Error = errMsg
	e.ProcessedAt = &now
	e.UpdatedAt = now
	m.s.d.events[eventID] = e
	return nil
}

func strPtr(s string) *string { return &s }
