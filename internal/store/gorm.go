package store

import (
	"context"
	"errors"
	"time"

	"course-checkout/internal/domain/billing"
	"course-checkout/internal/domain/courses"
	"course-checkout/internal/domain/enrollments"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 100

type gormStore struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm connection. Open it with TranslateError enabled
// so duplicate keys surface as gorm.ErrDuplicatedKey on every dialect.
func NewGorm(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ---- catalog ----

func (s *gormStore) FindCourse(ctx context.Context, id string) (*courses.Course, error) {
	var c courses.Course
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *gormStore) FindCoupon(ctx context.Context, code string) (*courses.Coupon, error) {
	var c courses.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", courses.NormalizeCode(code)).First(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *gormStore) UpsertCourse(ctx context.Context, c *courses.Course) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "price", "currency", "published", "stripe_price_id", "updated_at"}),
	}).Create(c).Error
	return translate(err)
}

// ---- orders ----

func (s *gormStore) CreateOrder(ctx context.Context, o *billing.Order) error {
	return translate(s.db.WithContext(ctx).Create(o).Error)
}

func (s *gormStore) FindOrder(ctx context.Context, id string) (*billing.Order, error) {
	var o billing.Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *gormStore) LockOrder(ctx context.Context, id string) (*billing.Order, error) {
	var o billing.Order
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (s *gormStore) TransitionOrder(ctx context.Context, id string, from billing.OrderStatus, u billing.OrderUpdate) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(u.Status),
		"updated_at": time.Now(),
	}
	if u.PaymentID != nil {
		updates["payment_id"] = *u.PaymentID
	}
	if u.Signature != nil {
		updates["signature"] = *u.Signature
	}
	if u.PaymentMethod != nil {
		updates["payment_method"] = *u.PaymentMethod
	}
	if u.WebhookReceived {
		updates["webhook_received"] = true
	}
	if u.PaidAt != nil {
		updates["paid_at"] = *u.PaidAt
	}

	res := s.db.WithContext(ctx).
		Model(&billing.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) AnnotateOrder(ctx context.Context, id string, a billing.OrderAnnotation) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if a.WebhookReceived {
		updates["webhook_received"] = true
	}
	if a.PaymentID != nil && *a.PaymentID != "" {
		updates["payment_id"] = gorm.Expr("COALESCE(payment_id, ?)", *a.PaymentID)
	}
	if a.PaymentMethod != nil && *a.PaymentMethod != "" {
		updates["payment_method"] = gorm.Expr("COALESCE(payment_method, ?)", *a.PaymentMethod)
	}

	res := s.db.WithContext(ctx).Model(&billing.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ListOrders(ctx context.Context, f OrderFilter) ([]billing.Order, error) {
	q := s.db.WithContext(ctx).Model(&billing.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}

	var out []billing.Order
	if err := q.Order("created_at DESC").Limit(limitOrDefault(f.Limit)).Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func (s *gormStore) ListOrphanedOrders(ctx context.Context, limit int) ([]billing.Order, error) {
	var out []billing.Order
	err := s.db.WithContext(ctx).
		Model(&billing.Order{}).
		Select("orders.*").
		Joins("LEFT JOIN enrollments ON enrollments.user_id = orders.user_id AND enrollments.course_id = orders.course_id").
		Where("orders.status IN ?", []string{string(billing.OrderCompleted), string(billing.OrderPaid)}).
		Where("enrollments.id IS NULL").
		Order("orders.paid_at ASC").
		Limit(limitOrDefault(limit)).
		Find(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// ---- enrollments ----

func (s *gormStore) FindEnrollment(ctx context.Context, userID, courseID string) (*enrollments.Enrollment, error) {
	var e enrollments.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *gormStore) CreateEnrollment(ctx context.Context, e *enrollments.Enrollment) error {
	// DO NOTHING keeps a Postgres transaction usable after a lost race.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// ---- payments ----

func (s *gormStore) AppendPayment(ctx context.Context, p *billing.Payment) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *gormStore) ListPayments(ctx context.Context, limit int) ([]billing.Payment, error) {
	var out []billing.Payment
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limitOrDefault(limit)).Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// ---- webhook events ----

func (s *gormStore) RecordWebhookEvent(ctx context.Context, e *billing.WebhookEvent) error {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *gormStore) FindWebhookEvent(ctx context.Context, eventID string) (*billing.WebhookEvent, error) {
	var e billing.WebhookEvent
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *gormStore) FinishWebhookEvent(ctx context.Context, eventID, outcome, errMsg string) error {
	now := time.Now()
	return translate(s.db.WithContext(ctx).
		Model(&billing.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"error":        errMsg,
			"processed_at": now,
			"updated_at":   now,
		}).Error)
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func limitOrDefault(n int) int {
	if n <= 0 || n > 500 {
		return defaultListLimit
	}
	return n
}
